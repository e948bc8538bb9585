package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/companionlabs/backend/internal/model/chat"
)

// Generator is the narrow contract to the image-generation provider.
type Generator interface {
	// TextToImage renders an image from a keyword prompt.
	TextToImage(ctx context.Context, prompt string) ([]byte, error)
	// ImageToImage transforms a source image guided by a style prompt.
	ImageToImage(ctx context.Context, prompt string, source []byte) ([]byte, error)
}

// Config locates the diffusion provider's endpoints.
type Config struct {
	TextToImageURL  string
	ImageToImageURL string
	APIKey          string
	Timeout         time.Duration
}

// Client calls a Stability-style diffusion API over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a ready generator client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

type textToImageRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    int          `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
}

type textPrompt struct {
	Text string `json:"text"`
}

type artifactsResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

func (c *Client) TextToImage(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(textToImageRequest{
		TextPrompts: []textPrompt{{Text: prompt}},
		CfgScale:    12,
		Height:      512,
		Width:       512,
		Samples:     1,
		Steps:       50,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal text-to-image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TextToImageURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build text-to-image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	return c.doArtifacts(req)
}

func (c *Client) ImageToImage(ctx context.Context, prompt string, source []byte) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("init_image", "init_image")
	if err != nil {
		return nil, fmt.Errorf("build image-to-image request: %w", err)
	}
	if _, err := part.Write(source); err != nil {
		return nil, fmt.Errorf("build image-to-image request: %w", err)
	}
	fields := map[string]string{
		"image_strength":         "0.3",
		"init_image_mode":        "IMAGE_STRENGTH",
		"text_prompts[0][text]":  prompt,
		"cfg_scale":              "7",
		"clip_guidance_preset":   "FAST_BLUE",
		"samples":                "1",
		"steps":                  "50",
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("build image-to-image request: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build image-to-image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ImageToImageURL, body)
	if err != nil {
		return nil, fmt.Errorf("build image-to-image request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	return c.doArtifacts(req)
}

func (c *Client) doArtifacts(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, chat.UpstreamProvider(chat.ProviderImage, "image provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, chat.UpstreamProvider(chat.ProviderImage,
			fmt.Sprintf("non-200 response during image generation: %s", string(detail)), nil)
	}

	var parsed artifactsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, chat.UpstreamProvider(chat.ProviderImage, "malformed image provider response", err)
	}
	if len(parsed.Artifacts) == 0 {
		return nil, chat.UpstreamProvider(chat.ProviderImage, "image provider returned no artifacts", nil)
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Artifacts[0].Base64)
	if err != nil {
		return nil, chat.UpstreamProvider(chat.ProviderImage, "image artifact decode failed", err)
	}
	return data, nil
}
