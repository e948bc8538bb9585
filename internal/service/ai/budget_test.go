package ai

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func historyOf(contents ...string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(contents))
	for i, c := range contents {
		if i%2 == 0 {
			msgs = append(msgs, schema.UserMessage(c))
		} else {
			msgs = append(msgs, schema.AssistantMessage(c, nil))
		}
	}
	return msgs
}

func TestTrimHistoryKeepsEverythingWithinBudget(t *testing.T) {
	history := historyOf("hi", "hello", "how are you", "fine")
	trimmed := TrimHistory("system", history, 10_000, 2)
	if len(trimmed) != len(history) {
		t.Fatalf("expected full history, got %d of %d", len(trimmed), len(history))
	}
}

func TestTrimHistoryDropsOldestFirst(t *testing.T) {
	long := strings.Repeat("x", 400)
	history := historyOf(long, long, long, "recent question")

	trimmed := TrimHistory("system", history, 150, 1)
	if len(trimmed) == 0 {
		t.Fatal("expected some history to survive")
	}
	if trimmed[len(trimmed)-1].Content != "recent question" {
		t.Fatalf("newest entry must survive, got %q", trimmed[len(trimmed)-1].Content)
	}
	if len(trimmed) == len(history) {
		t.Fatal("expected oldest entries to be dropped")
	}
}

func TestTrimHistoryFloorsAtMinTurns(t *testing.T) {
	long := strings.Repeat("x", 4000)
	history := historyOf(long, long, long)

	// Even blowing the budget, the floor of recent turns is kept.
	trimmed := TrimHistory("system", history, 10, 2)
	if len(trimmed) != 2 {
		t.Fatalf("expected min turns to be kept, got %d", len(trimmed))
	}
}

func TestParseReplyStructured(t *testing.T) {
	raw := "```json\n{\"content\":\"hi there\",\"links\":[\"https://example.org\"],\"next_questions\":[\"more?\"]}\n```"
	reply, ok := parseReply(raw)
	if !ok {
		t.Fatal("expected structured parse")
	}
	if reply.Content != "hi there" || len(reply.Links) != 1 || len(reply.NextQuestions) != 1 {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestParseReplyFallsBackToRawContent(t *testing.T) {
	reply, ok := parseReply("just a plain sentence")
	if ok {
		t.Fatal("expected unstructured fallback")
	}
	if reply.Content != "just a plain sentence" {
		t.Fatalf("unexpected fallback content %q", reply.Content)
	}
	if len(reply.Links) != 0 || len(reply.NextQuestions) != 0 {
		t.Fatalf("fallback must not invent links or questions: %+v", reply)
	}
}
