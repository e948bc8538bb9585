package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/schema"

	"github.com/companionlabs/backend/internal/model/account"
	"github.com/companionlabs/backend/internal/model/chat"
	"github.com/companionlabs/backend/internal/model/persona"
	"github.com/companionlabs/backend/internal/service/ai"
	"github.com/companionlabs/backend/internal/service/notify"
)

// exchangeConfig is the resolved context one exchange runs under: who is
// typing, which persona answers, and the entitlement that meters it.
type exchangeConfig struct {
	conversationID string
	requestID      string
	role           account.Role
	chatter        account.Chatter
	persona        persona.Persona
	pkg            account.Package
	group          *account.BillingGroup
}

// chatAction is one generation strategy. The pipeline calls validate before
// any generation, run to produce the reply, checkQuota after a successful run
// to raise near-threshold warnings, and updateCounter exactly once per
// consumed generation.
type chatAction interface {
	validate(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) error
	run(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) (chat.Message, error)
	checkQuota(ctx context.Context, cfg *exchangeConfig)
	updateCounter(ctx context.Context, cfg *exchangeConfig) error
}

// actionFor maps the wire action onto its strategy. The switch is closed: an
// action outside the enum is rejected at parse time, never dispatched.
func (s *Service) actionFor(action chat.Action) chatAction {
	switch action {
	case chat.ActionTextToImage:
		return &textToImageAction{svc: s}
	case chat.ActionImageToImage:
		return &imageToImageAction{svc: s}
	default:
		return &textToTextAction{svc: s}
	}
}

// textToTextAction answers with a persona-voiced text reply.
type textToTextAction struct {
	svc *Service
}

func (a *textToTextAction) validate(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) error {
	if cfg.pkg.AllowedRequest != account.Unlimited {
		count, err := a.svc.meter.TextCount(ctx, cfg.chatter.ID, cfg.role)
		if err != nil {
			return err
		}
		if count >= cfg.pkg.AllowedRequest {
			return chat.OutOfQuota(fmt.Sprintf("text quota reached: %d/%d", count, cfg.pkg.AllowedRequest))
		}
	}

	if len(cfg.chatter.ChatLanguages) == 0 {
		return nil
	}
	detected, err := a.svc.detector.DetectLanguages(ctx, req.Content)
	if err != nil {
		// Detection is advisory; a provider hiccup must not block the chat.
		log.Printf("[chat] language detection failed conversation=%s: %v", cfg.conversationID, err)
		return nil
	}
	allowed := make(map[string]bool, len(cfg.chatter.ChatLanguages))
	for _, code := range cfg.chatter.ChatLanguages {
		allowed[code] = true
	}
	for _, code := range detected {
		if !allowed[code] {
			return chat.LanguageIncompatible("detected language not enabled: " + code)
		}
	}
	return nil
}

func (a *textToTextAction) run(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) (chat.Message, error) {
	system := ai.BuildSystemPrompt(cfg.persona, cfg.chatter.Age(), cfg.chatter.Name())

	history, err := a.svc.promptHistory(ctx, cfg.conversationID)
	if err != nil {
		return chat.Message{}, err
	}
	history = ai.TrimHistory(system, history, a.svc.opts.MaxPromptTokens, a.svc.opts.MinPromptTurns)

	reply, err := a.svc.textGen.GenerateReply(ctx, system, history, req.Content)
	if err != nil {
		return chat.Message{}, err
	}

	return chat.Message{
		ConversationID: cfg.conversationID,
		Role:           chat.RoleAssistant,
		Content:        reply.Content,
		Links:          reply.Links,
		NextQuestions:  reply.NextQuestions,
		RequestID:      cfg.requestID,
	}, nil
}

func (a *textToTextAction) checkQuota(ctx context.Context, cfg *exchangeConfig) {
	if cfg.pkg.AllowedRequest == account.Unlimited {
		return
	}
	count, err := a.svc.meter.TextCount(ctx, cfg.chatter.ID, cfg.role)
	if err != nil {
		log.Printf("[chat] text quota check failed chatter=%s: %v", cfg.chatter.ID, err)
		return
	}
	// The counter moves after this check; count+1 is what this exchange
	// leaves behind.
	if count+1 < cfg.pkg.AllowedRequest {
		return
	}

	event := notify.Event{EventCode: notify.EventLearnerMessageQuota, LearnerID: cfg.chatter.ID}
	if cfg.role == account.RoleGuardian {
		event = notify.Event{EventCode: notify.EventGuardianMessageQuota, GuardianID: cfg.chatter.ID}
	}
	a.svc.pushEvent(ctx, event)
}

func (a *textToTextAction) updateCounter(ctx context.Context, cfg *exchangeConfig) error {
	_, err := a.svc.meter.IncrTextCount(ctx, cfg.chatter.ID)
	return err
}

// imageQuota holds the billing-period metering shared by both image
// strategies.
type imageQuota struct {
	svc *Service
}

func (q *imageQuota) validate(ctx context.Context, cfg *exchangeConfig) error {
	if cfg.pkg.ImageGenerationLimit == account.Unlimited {
		return nil
	}
	if cfg.group == nil {
		return chat.OutOfQuota("image generation requires an active subscription")
	}
	count, err := q.svc.meter.ImageCount(ctx, cfg.group.ID, cfg.group.PeriodAnchor)
	if err != nil {
		return err
	}
	if count >= cfg.pkg.ImageGenerationLimit {
		return chat.OutOfQuota(fmt.Sprintf("image quota reached: %d/%d", count, cfg.pkg.ImageGenerationLimit))
	}
	return nil
}

// checkQuota notifies the whole billing group once the period's image budget
// is spent: images come out of a shared pool, so every learner and guardian
// in the group hears about it.
func (q *imageQuota) checkQuota(ctx context.Context, cfg *exchangeConfig) {
	if cfg.pkg.ImageGenerationLimit == account.Unlimited || cfg.group == nil {
		return
	}
	count, err := q.svc.meter.ImageCount(ctx, cfg.group.ID, cfg.group.PeriodAnchor)
	if err != nil {
		log.Printf("[chat] image quota check failed group=%s: %v", cfg.group.ID, err)
		return
	}
	if count+1 < cfg.pkg.ImageGenerationLimit {
		return
	}

	for _, id := range cfg.group.LearnerIDs {
		q.svc.pushEvent(ctx, notify.Event{EventCode: notify.EventLearnerImageQuota, LearnerID: id})
	}
	for _, id := range cfg.group.GuardianIDs {
		q.svc.pushEvent(ctx, notify.Event{EventCode: notify.EventGuardianImageQuota, GuardianID: id})
	}
}

func (q *imageQuota) updateCounter(ctx context.Context, cfg *exchangeConfig) error {
	if cfg.group == nil {
		return nil
	}
	_, err := q.svc.meter.IncrImageCount(ctx, cfg.group.ID, cfg.group.PeriodAnchor)
	return err
}

// textToImageAction renders a new image from the user's description.
type textToImageAction struct {
	svc *Service
}

func (a *textToImageAction) validate(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) error {
	if a.svc.imageGen == nil {
		return chat.UpstreamProvider(chat.ProviderImage, "image provider not configured", nil)
	}
	return (&imageQuota{svc: a.svc}).validate(ctx, cfg)
}

func (a *textToImageAction) run(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) (chat.Message, error) {
	keywords, err := a.svc.textGen.ExtractDrawKeywords(ctx, req.Content)
	if err != nil {
		return chat.Message{}, err
	}

	data, err := a.svc.imageGen.TextToImage(ctx, keywords)
	if err != nil {
		return chat.Message{}, err
	}

	url, size, err := a.svc.media.RegisterImage(ctx, data, cfg.conversationID)
	if err != nil {
		return chat.Message{}, err
	}
	log.Printf("[chat] image generated conversation=%s bytes=%d", cfg.conversationID, size)

	return chat.Message{
		ConversationID: cfg.conversationID,
		Role:           chat.RoleImage,
		Content:        url,
		RequestID:      cfg.requestID,
	}, nil
}

func (a *textToImageAction) checkQuota(ctx context.Context, cfg *exchangeConfig) {
	(&imageQuota{svc: a.svc}).checkQuota(ctx, cfg)
}

func (a *textToImageAction) updateCounter(ctx context.Context, cfg *exchangeConfig) error {
	return (&imageQuota{svc: a.svc}).updateCounter(ctx, cfg)
}

// imageToImageAction restyles the user's uploaded image.
type imageToImageAction struct {
	svc *Service
}

func (a *imageToImageAction) validate(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) error {
	if a.svc.imageGen == nil {
		return chat.UpstreamProvider(chat.ProviderImage, "image provider not configured", nil)
	}
	if len(req.Image) == 0 {
		return chat.InvalidImageInput("image transformation without a source image")
	}
	return (&imageQuota{svc: a.svc}).validate(ctx, cfg)
}

func (a *imageToImageAction) run(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) (chat.Message, error) {
	data, err := a.svc.imageGen.ImageToImage(ctx, req.Style.Keywords(), req.Image)
	if err != nil {
		return chat.Message{}, err
	}

	url, size, err := a.svc.media.RegisterImage(ctx, data, cfg.conversationID)
	if err != nil {
		return chat.Message{}, err
	}
	log.Printf("[chat] image transformed conversation=%s bytes=%d", cfg.conversationID, size)

	return chat.Message{
		ConversationID: cfg.conversationID,
		Role:           chat.RoleImage,
		Content:        url,
		RequestID:      cfg.requestID,
	}, nil
}

func (a *imageToImageAction) checkQuota(ctx context.Context, cfg *exchangeConfig) {
	(&imageQuota{svc: a.svc}).checkQuota(ctx, cfg)
}

func (a *imageToImageAction) updateCounter(ctx context.Context, cfg *exchangeConfig) error {
	return (&imageQuota{svc: a.svc}).updateCounter(ctx, cfg)
}

// promptHistory loads the recent log and shapes it into provider messages,
// oldest first, skipping entries that never enter the prompt window.
func (s *Service) promptHistory(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	page, err := s.log.Page(ctx, conversationID, s.opts.HistoryLimit, "", false)
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, 0, len(page))
	for i := len(page) - 1; i >= 0; i-- {
		msg := page[i]
		if !msg.Role.InPrompt() {
			continue
		}
		switch msg.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(msg.Content))
		default:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return messages, nil
}

// pushEvent fires a notification without letting its outcome touch the
// exchange.
func (s *Service) pushEvent(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PushEvent(ctx, event); err != nil {
		log.Printf("[chat] push event %s failed: %v", event.EventCode, err)
	}
}
