package chat

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"

	"github.com/companionlabs/backend/internal/model/account"
	"github.com/companionlabs/backend/internal/model/chat"
)

// minImageSide is the smallest source-image dimension accepted for
// transformation.
const minImageSide = 128

// ExchangeRequest is one inbound chat payload, already parsed and bound to
// the connection's conversation.
type ExchangeRequest struct {
	ConversationID string
	ChatterID      string
	PersonaID      string
	Role           account.Role
	Action         chat.Action
	Content        string
	Image          []byte // decoded source image for image-to-image
	Style          chat.Style
	RequestID      string
}

// Exchange runs one full user-message round trip: persist and broadcast the
// user's entry, dispatch the selected strategy, persist and broadcast the
// reply, then stream audio for text replies. Refusals (quota, language,
// bad image) are recovered into chat-visible messages and report no error;
// provider and store failures broadcast an error event and propagate.
func (s *Service) Exchange(ctx context.Context, req ExchangeRequest) error {
	cfg, err := s.buildConfig(ctx, &req)
	if err != nil {
		s.recoverExchange(cfg, &req, err)
		return err
	}

	if err := s.runExchange(ctx, &req, cfg); err != nil {
		return s.recoverExchange(cfg, &req, err)
	}
	return nil
}

func (s *Service) buildConfig(ctx context.Context, req *ExchangeRequest) (*exchangeConfig, error) {
	if req.ConversationID == "" {
		return nil, chat.ConversationNotFound("message received before join")
	}

	chatter, err := s.directory.Chatter(ctx, req.ChatterID, req.Role)
	if err != nil {
		return nil, err
	}
	p, ok := s.personas.FindByID(req.PersonaID)
	if !ok {
		return nil, chat.ItemNotFound("persona not found: " + req.PersonaID)
	}
	pkg, err := s.directory.ActivePackage(ctx, req.ChatterID, req.Role)
	if err != nil {
		return nil, err
	}

	cfg := &exchangeConfig{
		conversationID: req.ConversationID,
		requestID:      req.RequestID,
		role:           req.Role,
		chatter:        chatter,
		persona:        p,
		pkg:            pkg,
	}
	if chatter.BillingGroupID != "" {
		group, err := s.directory.BillingGroup(ctx, chatter.BillingGroupID)
		if err != nil {
			return nil, err
		}
		cfg.group = &group
	}
	return cfg, nil
}

func (s *Service) runExchange(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) (err error) {
	if _, err := s.record(ctx, chat.Message{
		ConversationID: cfg.conversationID,
		Role:           chat.RoleUser,
		Content:        req.Content,
		RequestID:      cfg.requestID,
	}); err != nil {
		return err
	}

	act := s.actionFor(req.Action)
	if err := act.validate(ctx, req, cfg); err != nil {
		return err
	}

	if len(req.Image) > 0 {
		if err := s.recordUserImage(ctx, req, cfg); err != nil {
			return err
		}
	}

	response, err := act.run(ctx, req, cfg)
	if err != nil {
		return err
	}

	// The generation is consumed from here on: the counter moves even if
	// persisting or delivering the reply fails afterwards.
	defer func() {
		if counterErr := act.updateCounter(ctx, cfg); counterErr != nil {
			log.Printf("[chat] counter update failed conversation=%s: %v", cfg.conversationID, counterErr)
		}
	}()

	saved, err := s.record(ctx, response)
	if err != nil {
		return err
	}

	if saved.Role == chat.RoleAssistant && s.opts.VoiceEnabled && s.tts != nil && cfg.persona.VoiceID != "" {
		s.streamVoice(ctx, cfg.conversationID, cfg.requestID, saved.Content, cfg.persona.VoiceID)
	}

	act.checkQuota(ctx, cfg)
	return nil
}

// record appends a message to the log and broadcasts it to the room.
func (s *Service) record(ctx context.Context, msg chat.Message) (chat.Message, error) {
	saved, err := s.log.Append(ctx, msg)
	if err != nil {
		return chat.Message{}, err
	}
	s.hub.Broadcast(saved.ConversationID, "chat", saved)
	return saved, nil
}

// recordUserImage validates the uploaded source image, registers it with the
// asset store and records it in the log so the upload itself is part of the
// conversation history.
func (s *Service) recordUserImage(ctx context.Context, req *ExchangeRequest, cfg *exchangeConfig) error {
	dims, _, err := image.DecodeConfig(bytes.NewReader(req.Image))
	if err != nil {
		return chat.InvalidImageInput("source image is not a decodable image")
	}
	if dims.Width < minImageSide || dims.Height < minImageSide {
		return chat.InvalidImageInput(fmt.Sprintf("source image too small: %dx%d", dims.Width, dims.Height))
	}

	url, _, err := s.media.RegisterImage(ctx, req.Image, cfg.conversationID)
	if err != nil {
		return err
	}

	_, err = s.record(ctx, chat.Message{
		ConversationID: cfg.conversationID,
		Role:           chat.RoleUserImage,
		Content:        url,
		RequestID:      cfg.requestID,
	})
	return err
}

// recoverExchange translates a pipeline failure into what the room sees.
// Refusal kinds become regular chat entries and are swallowed; everything
// else broadcasts an error event and propagates. cfg may be nil when the
// failure happened before the exchange context resolved.
func (s *Service) recoverExchange(cfg *exchangeConfig, req *ExchangeRequest, err error) error {
	language := "en"
	conversationID := req.ConversationID
	if cfg != nil {
		language = cfg.chatter.DisplayLanguage
		conversationID = cfg.conversationID
	}

	switch chat.KindOf(err) {
	case chat.KindOutOfQuota:
		log.Printf("[chat] exchange refused conversation=%s: %v", conversationID, err)
		s.recoverMessage(conversationID, chat.Message{
			ConversationID: conversationID,
			Role:           chat.RoleSubscriptionWarning,
			Content:        QuotaExhaustedMessage(language),
			RequestID:      req.RequestID,
		})
		s.hub.Broadcast(conversationID, "warning", "quota exhausted")
		return nil

	case chat.KindLanguageIncompatible:
		log.Printf("[chat] exchange refused conversation=%s: %v", conversationID, err)
		allowed := []string{language}
		if cfg != nil && len(cfg.chatter.ChatLanguages) > 0 {
			allowed = cfg.chatter.ChatLanguages
		}
		s.recoverMessage(conversationID, chat.Message{
			ConversationID: conversationID,
			Role:           chat.RoleAssistant,
			Content:        LanguageMismatchMessage(language, allowed),
			RequestID:      req.RequestID,
		})
		s.hub.Broadcast(conversationID, "warning", "language not enabled")
		return nil

	case chat.KindInvalidImageInput:
		log.Printf("[chat] exchange refused conversation=%s: %v", conversationID, err)
		s.recoverMessage(conversationID, chat.Message{
			ConversationID: conversationID,
			Role:           chat.RoleAssistant,
			Content:        SmallImageMessage(language),
			RequestID:      req.RequestID,
		})
		s.hub.Broadcast(conversationID, "warning", "image rejected")
		return nil

	case chat.KindUpstreamProvider:
		log.Printf("[chat] exchange failed conversation=%s: %v", conversationID, err)
		content := DefaultFailureMessage(language)
		switch chat.ProviderOf(err) {
		case chat.ProviderText:
			content = ReplyFailureMessage(language)
		case chat.ProviderImage:
			content = DrawFailureMessage(language)
		}
		s.recoverMessage(conversationID, chat.Message{
			ConversationID: conversationID,
			Role:           chat.RoleAssistant,
			Content:        content,
			RequestID:      req.RequestID,
		})
		s.hub.Broadcast(conversationID, "error", "generation failed")
		return err

	case chat.KindStoreUnavailable:
		log.Printf("[chat] exchange failed conversation=%s: %v", conversationID, err)
		// The log itself is down: deliver without persisting.
		s.hub.Broadcast(conversationID, "chat", chat.Message{
			ConversationID: conversationID,
			Role:           chat.RoleAssistant,
			Content:        StoreFailureMessage(language),
			RequestID:      req.RequestID,
		})
		s.hub.Broadcast(conversationID, "error", "history unavailable")
		return err

	default:
		log.Printf("[chat] exchange failed conversation=%s: %v", conversationID, err)
		s.recoverMessage(conversationID, chat.Message{
			ConversationID: conversationID,
			Role:           chat.RoleAssistant,
			Content:        DefaultFailureMessage(language),
			RequestID:      req.RequestID,
		})
		s.hub.Broadcast(conversationID, "error", "exchange failed")
		return err
	}
}

// recoverMessage persists a recovery entry best-effort and broadcasts it
// either way; failing to save the apology must not hide it from the room.
func (s *Service) recoverMessage(conversationID string, msg chat.Message) {
	saved, err := s.log.Append(context.Background(), msg)
	if err != nil {
		log.Printf("[chat] recovery entry not persisted conversation=%s: %v", conversationID, err)
		saved = msg
	}
	s.hub.Broadcast(conversationID, "chat", saved)
}
