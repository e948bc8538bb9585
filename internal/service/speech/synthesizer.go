package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/companionlabs/backend/internal/model/chat"
)

// ChunkStream is a lazy, finite, non-restartable sequence of audio byte
// chunks from the synthesis provider. Next returns io.EOF when the stream is
// exhausted.
type ChunkStream interface {
	Next() ([]byte, error)
	Close() error
}

// Synthesizer is the narrow contract to the speech-synthesis provider.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (ChunkStream, error)
}

// Config locates the synthesis provider.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	ChunkSize int
	Timeout   time.Duration
}

// Client streams synthesized audio from an HTTP text-to-speech endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a ready synthesizer client.
func NewClient(cfg Config) *Client {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 8192
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_multilingual_v2"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (c *Client) Synthesize(ctx context.Context, text, voice string) (ChunkStream, error) {
	body, err := json.Marshal(map[string]string{
		"text":  text,
		"voice": voice,
		"model": c.cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, chat.UpstreamProvider(chat.ProviderSpeech, "speech provider unreachable", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, chat.UpstreamProvider(chat.ProviderSpeech,
			fmt.Sprintf("non-200 response during speech synthesis: %s", string(detail)), nil)
	}

	return &readerStream{body: resp.Body, chunkSize: c.cfg.ChunkSize}, nil
}

// readerStream slices a streaming response body into provider-sized chunks.
type readerStream struct {
	body      io.ReadCloser
	chunkSize int
}

func (r *readerStream) Next() ([]byte, error) {
	buf := make([]byte, r.chunkSize)
	n, err := io.ReadFull(r.body, buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == io.ErrUnexpectedEOF {
		return nil, io.EOF
	}
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, chat.UpstreamProvider(chat.ProviderSpeech, "speech stream read failed", err)
	}
	return nil, io.EOF
}

func (r *readerStream) Close() error { return r.body.Close() }
