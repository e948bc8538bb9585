package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/companionlabs/backend/internal/config"
	chatmodel "github.com/companionlabs/backend/internal/model/chat"
)

// Reply is the structured answer expected from the text-generation provider:
// the message itself plus reference links and suggested follow-up questions.
type Reply struct {
	Content       string   `json:"content"`
	Links         []string `json:"links"`
	NextQuestions []string `json:"next_questions"`
}

// TextGenerator is the narrow contract the dispatcher consumes for text
// replies and for auxiliary single-shot prompts.
type TextGenerator interface {
	GenerateReply(ctx context.Context, system string, history []*schema.Message, userMessage string) (Reply, error)
	ExtractDrawKeywords(ctx context.Context, userPrompt string) (string, error)
}

// LanguageDetector infers the languages present in a prompt, returned as
// ISO 639-1 codes.
type LanguageDetector interface {
	DetectLanguages(ctx context.Context, text string) ([]string, error)
}

// Service backs both contracts with one chat model behind an eino chain.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the generation chain from the configured model.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	cm, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newServiceWithModel(ctx, cm)
}

func newServiceWithModel(ctx context.Context, cm model.ChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(cm)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{chatModel: cm, chain: runnable}, nil
}

// GenerateReply runs one structured generation. The system prompt instructs
// the model to answer as JSON; a non-JSON answer degrades to a plain reply
// with no links or follow-ups rather than failing the exchange.
func (s *Service) GenerateReply(ctx context.Context, system string, history []*schema.Message, userMessage string) (Reply, error) {
	input := map[string]any{
		"system":  system + "\n\n" + replyFormatInstruction,
		"history": history,
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return Reply{}, chatmodel.UpstreamProvider(chatmodel.ProviderText, "text generation failed", err)
	}

	reply, ok := parseReply(response.Content)
	if !ok {
		log.Printf("[ai] unstructured model reply, using raw content (len=%d)", len(response.Content))
	}
	return reply, nil
}

// ExtractDrawKeywords turns free-form user text into a terse visual prompt
// for the image-generation provider.
func (s *Service) ExtractDrawKeywords(ctx context.Context, userPrompt string) (string, error) {
	messages := []*schema.Message{
		schema.UserMessage(fmt.Sprintf(drawExtractionPrompt, userPrompt)),
	}
	response, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", chatmodel.UpstreamProvider(chatmodel.ProviderText, "draw keyword extraction failed", err)
	}
	return strings.TrimSpace(response.Content), nil
}

// DetectLanguages asks the model which of the supported language codes the
// text is written in.
func (s *Service) DetectLanguages(ctx context.Context, text string) ([]string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(languageDetectPrompt),
		schema.UserMessage(text),
	}
	response, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, chatmodel.UpstreamProvider(chatmodel.ProviderText, "language detection failed", err)
	}

	var codes []string
	for _, code := range strings.Split(response.Content, ",") {
		code = strings.ToLower(strings.TrimSpace(code))
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func parseReply(content string) (Reply, bool) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var reply Reply
	if err := json.Unmarshal([]byte(trimmed), &reply); err != nil || reply.Content == "" {
		return Reply{Content: content}, false
	}
	return reply, true
}
