package messagelog

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/companionlabs/backend/internal/model/chat"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLite(db)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func appendText(t *testing.T, store *SQLite, conversationID, role, content string) chat.Message {
	t.Helper()
	saved, err := store.Append(context.Background(), chat.Message{
		ConversationID: conversationID,
		Role:           chat.Role(role),
		Content:        content,
	})
	if err != nil {
		t.Fatalf("append %q: %v", content, err)
	}
	return saved
}

func TestAppendAssignsStrictlyIncreasingTimestamps(t *testing.T) {
	store := newTestStore(t)
	// Freeze the clock so every append collides and the monotonic guard has
	// to resolve the tie.
	frozen := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return frozen }

	var last string
	for i := 0; i < 5; i++ {
		saved := appendText(t, store, "conv-a", "user", "hello")
		if saved.Timestamp <= last {
			t.Fatalf("timestamp %q not greater than previous %q", saved.Timestamp, last)
		}
		last = saved.Timestamp
	}
}

func TestAppendIsolatesConversations(t *testing.T) {
	store := newTestStore(t)
	appendText(t, store, "conv-a", "user", "in a")
	appendText(t, store, "conv-b", "user", "in b")

	page, err := store.Page(context.Background(), "conv-a", 10, "", false)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 1 || page[0].Content != "in a" {
		t.Fatalf("expected only conv-a messages, got %+v", page)
	}
}

func TestPageBackwardNewestFirst(t *testing.T) {
	store := newTestStore(t)
	for _, content := range []string{"one", "two", "three", "four", "five"} {
		appendText(t, store, "conv", "user", content)
	}

	page, err := store.Page(context.Background(), "conv", 3, "", false)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(page))
	}
	if page[0].Content != "five" || page[2].Content != "three" {
		t.Fatalf("unexpected order: %q, %q, %q", page[0].Content, page[1].Content, page[2].Content)
	}

	older, err := store.Page(context.Background(), "conv", 3, page[2].Timestamp, false)
	if err != nil {
		t.Fatalf("page with cursor: %v", err)
	}
	if len(older) != 2 || older[0].Content != "two" || older[1].Content != "one" {
		t.Fatalf("unexpected older page: %+v", older)
	}
}

func TestPageForwardOldestFirst(t *testing.T) {
	store := newTestStore(t)
	first := appendText(t, store, "conv", "user", "one")
	appendText(t, store, "conv", "assistant", "two")
	appendText(t, store, "conv", "user", "three")

	newer, err := store.Page(context.Background(), "conv", 10, first.Timestamp, true)
	if err != nil {
		t.Fatalf("page forward: %v", err)
	}
	if len(newer) != 2 || newer[0].Content != "two" || newer[1].Content != "three" {
		t.Fatalf("unexpected forward page: %+v", newer)
	}
}

func TestAround(t *testing.T) {
	store := newTestStore(t)
	appendText(t, store, "conv", "user", "one")
	pivot := appendText(t, store, "conv", "assistant", "two")
	appendText(t, store, "conv", "user", "three")

	older, newer, err := store.Around(context.Background(), "conv", pivot.Timestamp, 10)
	if err != nil {
		t.Fatalf("around: %v", err)
	}
	if len(older) != 1 || older[0].Content != "one" {
		t.Fatalf("unexpected older: %+v", older)
	}
	if len(newer) != 1 || newer[0].Content != "three" {
		t.Fatalf("unexpected newer: %+v", newer)
	}
}

func TestDeleteAt(t *testing.T) {
	store := newTestStore(t)
	saved := appendText(t, store, "conv", "user", "delete me")

	deleted, err := store.DeleteAt(context.Background(), "conv", saved.Timestamp)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected first delete to report true")
	}

	deleted, err = store.DeleteAt(context.Background(), "conv", saved.Timestamp)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatal("expected second delete to report false")
	}

	page, err := store.Page(context.Background(), "conv", 10, "", false)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("expected empty log, got %+v", page)
	}
}

func TestSearchHighlightsStoredContent(t *testing.T) {
	store := newTestStore(t)
	appendText(t, store, "conv", "user", "I really love dinosaurs and volcanoes")
	appendText(t, store, "conv", "assistant", "Dinosaurs are fascinating!")
	appendText(t, store, "conv", "user", "what about planets")

	matches, err := store.Search(context.Background(), "conv", "dinosaurs")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	for _, match := range matches {
		if !strings.Contains(match.Content, "<em>") {
			t.Fatalf("match not highlighted: %q", match.Content)
		}
	}
	if matches[0].Content != "<em>Dinosaurs</em> are fascinating!" {
		t.Fatalf("unexpected highlight: %q", matches[0].Content)
	}
}

func TestSearchSkipsStaleIndexEntries(t *testing.T) {
	store := newTestStore(t)
	appendText(t, store, "conv", "user", "tell me about comets")

	// An index row without a primary row simulates the secondary index
	// lagging behind a delete.
	if _, err := store.db.Exec(
		`INSERT INTO messages_fts (content, conversation_id, ts) VALUES (?, ?, ?)`,
		"stale comets entry", "conv", "2099-01-01T00:00:00.000000000Z",
	); err != nil {
		t.Fatalf("seed stale index row: %v", err)
	}

	matches, err := store.Search(context.Background(), "conv", "comets")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected stale hit to be skipped, got %d matches", len(matches))
	}
	if !strings.Contains(matches[0].Content, "<em>comets</em>") {
		t.Fatalf("unexpected match: %q", matches[0].Content)
	}
}

func TestApplyHighlight(t *testing.T) {
	got := applyHighlight("Dogs and dogs and dogfood", "some <em>dogs</em> here")
	want := "<em>Dogs</em> and <em>dogs</em> and dogfood"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if got := applyHighlight("unchanged text", "no markers"); got != "unchanged text" {
		t.Fatalf("expected content unchanged, got %q", got)
	}
}

func TestAppendRequiresConversationID(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Append(context.Background(), chat.Message{Role: chat.RoleUser, Content: "orphan"})
	if chat.KindOf(err) != chat.KindBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}
