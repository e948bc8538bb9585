package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/companionlabs/backend/internal/model/chat"
)

// Store registers binary assets with the external object storage and hands
// back a public URL. Object storage itself is outside this engine; only the
// registration contract lives here.
type Store interface {
	RegisterImage(ctx context.Context, data []byte, conversationID string) (url string, size int, err error)
}

// Config locates the object-storage gateway.
type Config struct {
	UploadBaseURL string // assets are PUT to UploadBaseURL/<key>
	PublicBaseURL string // and served from PublicBaseURL/<key>
	Timeout       time.Duration
}

// HTTPStore uploads assets with plain PUT requests, mirroring a presigned-URL
// workflow.
type HTTPStore struct {
	cfg  Config
	http *http.Client
}

// NewHTTPStore returns a ready asset store client.
func NewHTTPStore(cfg Config) *HTTPStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPStore{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (s *HTTPStore) RegisterImage(ctx context.Context, data []byte, conversationID string) (string, int, error) {
	key := fmt.Sprintf("chat_history/%s/images/%s.jpg", conversationID, uuid.NewString())

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.cfg.UploadBaseURL+"/"+key, bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("build asset upload: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", 0, chat.StoreUnavailable("asset upload failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", 0, chat.StoreUnavailable(fmt.Sprintf("asset upload rejected: status %d", resp.StatusCode), nil)
	}

	return s.cfg.PublicBaseURL + "/" + key, len(data), nil
}
