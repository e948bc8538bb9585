package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/companionlabs/backend/internal/model/account"
	"github.com/companionlabs/backend/internal/model/chat"
	"github.com/companionlabs/backend/internal/model/persona"
	"github.com/companionlabs/backend/internal/service/ai"
	"github.com/companionlabs/backend/internal/service/image"
	"github.com/companionlabs/backend/internal/service/media"
	"github.com/companionlabs/backend/internal/service/notify"
	"github.com/companionlabs/backend/internal/service/room"
	"github.com/companionlabs/backend/internal/service/speech"
	"github.com/companionlabs/backend/internal/store/messagelog"
	"github.com/companionlabs/backend/internal/store/quota"
)

// Options tunes the dispatch pipeline.
type Options struct {
	// MaxPromptTokens bounds the prompt assembled for text generation.
	MaxPromptTokens int
	// MinPromptTurns is the floor of history entries always included
	// regardless of the token budget.
	MinPromptTurns int
	// HistoryLimit caps how much history is fetched for prompt assembly.
	HistoryLimit int
	// ReplayLimit caps the history replayed on join.
	ReplayLimit int
	// VoiceEnabled turns synthesized audio streaming on for text replies.
	VoiceEnabled bool
}

func (o Options) withDefaults() Options {
	if o.MaxPromptTokens <= 0 {
		o.MaxPromptTokens = 2000
	}
	if o.MinPromptTurns <= 0 {
		o.MinPromptTurns = 20
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 10
	}
	if o.ReplayLimit <= 0 {
		o.ReplayLimit = 20
	}
	return o
}

// Service is the conversation session engine: it owns join/leave bookkeeping,
// the exchange pipeline and the history surface.
type Service struct {
	log       messagelog.Store
	meter     quota.Meter
	registry  *room.Registry
	hub       *room.Hub
	directory account.Directory
	personas  persona.Store
	textGen   ai.TextGenerator
	detector  ai.LanguageDetector
	imageGen  image.Generator
	media     media.Store
	tts       speech.Synthesizer
	notifier  notify.Notifier
	opts      Options
}

// Deps bundles the collaborators wired into the engine.
type Deps struct {
	Log       messagelog.Store
	Meter     quota.Meter
	Registry  *room.Registry
	Hub       *room.Hub
	Directory account.Directory
	Personas  persona.Store
	TextGen   ai.TextGenerator
	Detector  ai.LanguageDetector
	ImageGen  image.Generator
	Media     media.Store
	TTS       speech.Synthesizer
	Notifier  notify.Notifier
}

// NewService wires the engine.
func NewService(deps Deps, opts Options) *Service {
	return &Service{
		log:       deps.Log,
		meter:     deps.Meter,
		registry:  deps.Registry,
		hub:       deps.Hub,
		directory: deps.Directory,
		personas:  deps.Personas,
		textGen:   deps.TextGen,
		detector:  deps.Detector,
		imageGen:  deps.ImageGen,
		media:     deps.Media,
		tts:       deps.TTS,
		notifier:  deps.Notifier,
		opts:      opts.withDefaults(),
	}
}

var conversationNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("companionlabs.conversation"))

// ConversationID derives the stable conversation identity from the unique
// {chatter, persona} pairing for a role.
func ConversationID(chatterID, personaID string, role account.Role) string {
	key := fmt.Sprintf("%s:%s:%s", role, chatterID, personaID)
	return uuid.NewSHA1(conversationNamespace, []byte(key)).String()
}

// JoinResult is returned to the joining connection: the resolved
// conversation, the replayed history (newest first) and, for a fresh
// conversation, the welcome message that was just persisted.
type JoinResult struct {
	ConversationID string
	History        []chat.Message
	Welcome        *chat.Message
}

// Join resolves (or lazily creates) the conversation for a chatter/persona
// pairing, guarantees a fresh conversation starts with a persisted welcome
// message, registers the connection and replays recent history.
func (s *Service) Join(ctx context.Context, chatterID, personaID string, role account.Role) (JoinResult, error) {
	chatter, err := s.directory.Chatter(ctx, chatterID, role)
	if err != nil {
		return JoinResult{}, err
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return JoinResult{}, chat.ItemNotFound("persona not found: " + personaID)
	}

	conversationID := ConversationID(chatterID, personaID, role)

	var welcome *chat.Message
	err = s.registry.Join(conversationID, role, func() error {
		recent, err := s.log.Page(ctx, conversationID, 1, "", false)
		if err != nil {
			return err
		}
		if len(recent) > 0 {
			return nil
		}

		content := p.WelcomeMessage(chatter.DisplayLanguage)
		if content == "" {
			content = WelcomeMessage(chatter.DisplayLanguage, p.Name)
		}
		saved, err := s.log.Append(ctx, chat.Message{
			ConversationID: conversationID,
			Role:           chat.RoleAssistant,
			Content:        content,
			NextQuestions:  p.OpeningQuestions(chatter.DisplayLanguage),
		})
		if err != nil {
			return err
		}
		welcome = &saved
		return nil
	})
	if err != nil {
		// The connection was counted; undo before surfacing the failure.
		s.registry.Leave(conversationID)
		return JoinResult{}, err
	}

	history, err := s.log.Page(ctx, conversationID, s.opts.ReplayLimit, "", false)
	if err != nil {
		s.registry.Leave(conversationID)
		return JoinResult{}, err
	}

	return JoinResult{ConversationID: conversationID, History: history, Welcome: welcome}, nil
}

// Attach subscribes a connection to the conversation's live events.
func (s *Service) Attach(conversationID string, sub room.Subscriber) {
	s.hub.Subscribe(conversationID, sub)
}

// Detach unsubscribes a connection and releases its registry slot. Implicit
// on disconnect; there is no explicit leave payload.
func (s *Service) Detach(conversationID string, sub room.Subscriber) {
	s.hub.Unsubscribe(conversationID, sub)
	s.registry.Leave(conversationID)
}

// GetHistory pages the conversation log newest-first from an optional cursor.
func (s *Service) GetHistory(ctx context.Context, conversationID string, limit int, cursor string) ([]chat.Message, error) {
	return s.log.Page(ctx, conversationID, limit, cursor, false)
}

// GetAround fetches messages older and newer than a timestamp.
func (s *Service) GetAround(ctx context.Context, conversationID, timestamp string, limit int) (older, newer []chat.Message, err error) {
	return s.log.Around(ctx, conversationID, timestamp, limit)
}

// SearchHistory runs a full-text search with highlighted snippets.
func (s *Service) SearchHistory(ctx context.Context, conversationID, query string) ([]chat.Message, error) {
	return s.log.Search(ctx, conversationID, query)
}

// DeleteMessage removes one message by its exact timestamp key. A missing
// record is a normal negative result.
func (s *Service) DeleteMessage(ctx context.Context, conversationID, timestamp string) (bool, error) {
	return s.log.DeleteAt(ctx, conversationID, timestamp)
}

// UsageReport summarizes a subject's quota consumption.
type UsageReport struct {
	MessagesUsed      int `json:"messagesUsed"`
	MessagesAvailable int `json:"messagesAvailable"`
	ImagesUsed        int `json:"imagesUsed"`
	ImagesAvailable   int `json:"imagesAvailable"`
}

// GetUsage reads the current text and image counters against the subject's
// package limits. Available values of -1 mean unlimited.
func (s *Service) GetUsage(ctx context.Context, chatterID string, role account.Role) (UsageReport, error) {
	chatter, err := s.directory.Chatter(ctx, chatterID, role)
	if err != nil {
		return UsageReport{}, err
	}
	pkg, err := s.directory.ActivePackage(ctx, chatterID, role)
	if err != nil {
		return UsageReport{}, err
	}

	report := UsageReport{
		MessagesAvailable: pkg.AllowedRequest,
		ImagesAvailable:   pkg.ImageGenerationLimit,
	}
	report.MessagesUsed, err = s.meter.TextCount(ctx, chatterID, role)
	if err != nil {
		return UsageReport{}, err
	}

	if chatter.BillingGroupID != "" {
		group, err := s.directory.BillingGroup(ctx, chatter.BillingGroupID)
		if err != nil {
			return UsageReport{}, err
		}
		report.ImagesUsed, err = s.meter.ImageCount(ctx, group.ID, group.PeriodAnchor)
		if err != nil {
			return UsageReport{}, err
		}
	}
	return report, nil
}
