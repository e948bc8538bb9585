package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Event codes raised by the quota near-threshold checks.
const (
	EventLearnerMessageQuota  = "CHILD_OUT_OF_MESSAGE_QUOTA_WARNING"
	EventGuardianMessageQuota = "PARENT_OUT_OF_MESSAGE_QUOTA_WARNING"
	EventLearnerImageQuota    = "CHILD_OUT_OF_IMAGE_QUOTA_WARNING"
	EventGuardianImageQuota   = "PARENT_OUT_OF_IMAGE_QUOTA_WARNING"
)

// Event is one push notification request.
type Event struct {
	EventCode  string `json:"event_code"`
	LearnerID  string `json:"receive_user_id,omitempty"`
	GuardianID string `json:"receive_parent_id,omitempty"`
}

// Notifier triggers push notifications. Fire-and-forget: callers log
// failures and move on; a notification failure never fails an exchange.
type Notifier interface {
	PushEvent(ctx context.Context, event Event) error
}

// Evaluator triggers the asynchronous post-session progress evaluation.
type Evaluator interface {
	EvaluateProgress(ctx context.Context, conversationID string, startTime time.Time) error
}

// Config locates the notification and evaluation endpoints.
type Config struct {
	PushURL       string
	EvaluationURL string
	Timeout       time.Duration
}

// HTTPTrigger implements both triggers over plain HTTP POSTs.
type HTTPTrigger struct {
	cfg  Config
	http *http.Client
}

// NewHTTPTrigger returns a ready trigger client.
func NewHTTPTrigger(cfg Config) *HTTPTrigger {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTrigger{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (t *HTTPTrigger) PushEvent(ctx context.Context, event Event) error {
	return t.post(ctx, t.cfg.PushURL, event)
}

func (t *HTTPTrigger) EvaluateProgress(ctx context.Context, conversationID string, startTime time.Time) error {
	payload := map[string]string{
		"conversation_id": conversationID,
		"start_time":      startTime.UTC().Format(time.RFC3339),
	}
	return t.post(ctx, t.cfg.EvaluationURL, payload)
}

func (t *HTTPTrigger) post(ctx context.Context, url string, payload any) error {
	if url == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("trigger call failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("trigger rejected: status %d", resp.StatusCode)
	}
	return nil
}
