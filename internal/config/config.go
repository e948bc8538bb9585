package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every runtime setting of the service.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	AI      AIConfig
	Speech  SpeechConfig
	Image   ImageConfig
	Media   MediaConfig
	Notify  NotifyConfig
	Chat    ChatConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Storage: loadStorageConfig(),
		AI:      ai,
		Speech:  loadSpeechConfig(),
		Image:   loadImageConfig(),
		Media:   loadMediaConfig(),
		Notify:  loadNotifyConfig(),
		Chat:    chat,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StorageConfig locates the conversation database. The same database backs
// the message log and the quota counters.
type StorageConfig struct {
	SQLitePath string
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "data/conversations.db"),
	}
}

// AIConfig describes the text-generation model.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("model credentials missing: provide ARK_API_KEY + ARK_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// SpeechConfig describes the text-to-speech provider.
type SpeechConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	ChunkSize int
	Timeout   time.Duration
}

// Enabled reports whether voice streaming can run.
func (c SpeechConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

func loadSpeechConfig() SpeechConfig {
	return SpeechConfig{
		BaseURL:   strings.TrimSpace(os.Getenv("SPEECH_BASE_URL")),
		APIKey:    strings.TrimSpace(os.Getenv("SPEECH_API_KEY")),
		Model:     getEnvOrDefault("SPEECH_MODEL", "eleven_multilingual_v2"),
		ChunkSize: intEnvOrDefault("SPEECH_CHUNK_SIZE", 8192),
		Timeout:   secondsEnvOrDefault("SPEECH_TIMEOUT", 120),
	}
}

// ImageConfig describes the diffusion provider.
type ImageConfig struct {
	TextToImageURL  string
	ImageToImageURL string
	APIKey          string
	Timeout         time.Duration
}

// Enabled reports whether image generation can run.
func (c ImageConfig) Enabled() bool {
	return c.APIKey != "" && (c.TextToImageURL != "" || c.ImageToImageURL != "")
}

func loadImageConfig() ImageConfig {
	return ImageConfig{
		TextToImageURL:  strings.TrimSpace(os.Getenv("IMAGE_TEXT_TO_IMAGE_URL")),
		ImageToImageURL: strings.TrimSpace(os.Getenv("IMAGE_IMAGE_TO_IMAGE_URL")),
		APIKey:          strings.TrimSpace(os.Getenv("IMAGE_API_KEY")),
		Timeout:         secondsEnvOrDefault("IMAGE_TIMEOUT", 60),
	}
}

// MediaConfig locates the object-storage gateway for generated assets.
type MediaConfig struct {
	UploadBaseURL string
	PublicBaseURL string
	Timeout       time.Duration
}

func loadMediaConfig() MediaConfig {
	return MediaConfig{
		UploadBaseURL: strings.TrimSpace(os.Getenv("MEDIA_UPLOAD_BASE_URL")),
		PublicBaseURL: strings.TrimSpace(os.Getenv("MEDIA_PUBLIC_BASE_URL")),
		Timeout:       secondsEnvOrDefault("MEDIA_TIMEOUT", 30),
	}
}

// NotifyConfig locates the push-notification and evaluation triggers. Empty
// URLs disable the corresponding trigger.
type NotifyConfig struct {
	PushURL       string
	EvaluationURL string
	Timeout       time.Duration
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		PushURL:       strings.TrimSpace(os.Getenv("NOTIFY_PUSH_URL")),
		EvaluationURL: strings.TrimSpace(os.Getenv("NOTIFY_EVALUATION_URL")),
		Timeout:       secondsEnvOrDefault("NOTIFY_TIMEOUT", 10),
	}
}

// ChatConfig tunes the dispatch pipeline.
type ChatConfig struct {
	MaxPromptTokens int
	MinPromptTurns  int
	HistoryLimit    int
	ReplayLimit     int
	VoiceEnabled    bool
}

func loadChatConfig() (ChatConfig, error) {
	voice, err := parseBoolEnv("CHAT_VOICE_ENABLED", true)
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{
		MaxPromptTokens: intEnvOrDefault("CHAT_MAX_PROMPT_TOKENS", 2000),
		MinPromptTurns:  intEnvOrDefault("CHAT_MIN_PROMPT_TURNS", 20),
		HistoryLimit:    intEnvOrDefault("CHAT_HISTORY_LIMIT", 10),
		ReplayLimit:     intEnvOrDefault("CHAT_REPLAY_LIMIT", 20),
		VoiceEnabled:    voice,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func intEnvOrDefault(key string, defaultValue int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return val
}

func secondsEnvOrDefault(key string, defaultSeconds int) time.Duration {
	return time.Duration(intEnvOrDefault(key, defaultSeconds)) * time.Second
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
