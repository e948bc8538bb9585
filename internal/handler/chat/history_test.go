package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"

	"github.com/companionlabs/backend/internal/model/account"
	chatmodel "github.com/companionlabs/backend/internal/model/chat"
	"github.com/companionlabs/backend/internal/model/persona"
	chatservice "github.com/companionlabs/backend/internal/service/chat"
	"github.com/companionlabs/backend/internal/service/room"
	"github.com/companionlabs/backend/internal/store/messagelog"
	"github.com/companionlabs/backend/internal/store/quota"
)

func setupHistoryRouter(t *testing.T) (*chi.Mux, messagelog.Store) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	log, err := messagelog.NewSQLite(db)
	if err != nil {
		t.Fatalf("create message log: %v", err)
	}
	meter, err := quota.NewSQLiteMeter(db)
	if err != nil {
		t.Fatalf("create quota meter: %v", err)
	}

	directory := account.NewMemoryDirectory()
	directory.PutChatter(account.Chatter{
		ID:              "learner-1",
		Username:        "learner-1",
		DisplayLanguage: "en",
	}, account.Package{AllowedRequest: 5, ImageGenerationLimit: 3})

	svc := chatservice.NewService(chatservice.Deps{
		Log:       log,
		Meter:     meter,
		Registry:  room.NewRegistry(nil),
		Hub:       room.NewHub(),
		Directory: directory,
		Personas:  persona.NewMemoryStore(persona.Seed()),
	}, chatservice.Options{})

	r := chi.NewRouter()
	NewHistoryHandler(svc).RegisterRoutes(r)
	return r, log
}

func appendMessage(t *testing.T, log messagelog.Store, conversationID, content string) chatmodel.Message {
	t.Helper()
	saved, err := log.Append(context.Background(), chatmodel.Message{
		ConversationID: conversationID,
		Role:           chatmodel.RoleUser,
		Content:        content,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return saved
}

func TestPageMessages(t *testing.T) {
	r, log := setupHistoryRouter(t)
	appendMessage(t, log, "conv-1", "one")
	appendMessage(t, log, "conv-1", "two")
	appendMessage(t, log, "conv-1", "three")

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1/messages?limit=2", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Messages   []chatmodel.Message `json:"messages"`
		NextCursor string              `json:"nextCursor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(body.Messages))
	}
	if body.Messages[0].Content != "three" || body.Messages[1].Content != "two" {
		t.Fatalf("expected newest first, got %+v", body.Messages)
	}
	if body.NextCursor == "" {
		t.Fatal("expected a next cursor for a full page")
	}

	// Follow the cursor to the remaining entry.
	req = httptest.NewRequest(http.MethodGet, "/conversations/conv-1/messages?limit=2&cursor="+body.NextCursor, nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode second page: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content != "one" {
		t.Fatalf("unexpected second page %+v", body.Messages)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	r, _ := setupHistoryRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1/messages/search", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSearchFindsHighlightedMatches(t *testing.T) {
	r, log := setupHistoryRouter(t)
	appendMessage(t, log, "conv-1", "tell me about volcanoes")

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1/messages/search?q=volcanoes", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Matches []chatmodel.Message `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Matches) != 1 {
		t.Fatalf("expected one match, got %d", len(body.Matches))
	}
}

func TestDeleteMessage(t *testing.T) {
	r, log := setupHistoryRouter(t)
	saved := appendMessage(t, log, "conv-1", "remove me")

	req := httptest.NewRequest(http.MethodDelete, "/conversations/conv-1/messages/"+saved.Timestamp, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	// Deleting it again is a miss.
	req = httptest.NewRequest(http.MethodDelete, "/conversations/conv-1/messages/"+saved.Timestamp, nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestUsageEndpoint(t *testing.T) {
	r, _ := setupHistoryRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/usage?chatter_id=learner-1&role=user", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var report chatservice.UsageReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.MessagesAvailable != 5 || report.ImagesAvailable != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestUsageUnknownChatter(t *testing.T) {
	r, _ := setupHistoryRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/usage?chatter_id=nobody&role=user", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
