package messagelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/companionlabs/backend/internal/model/chat"
)

// tsLayout is a fixed-width RFC3339 variant so that lexicographic order of
// stored keys matches chronological order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL,
	ts              TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	links           TEXT NOT NULL DEFAULT '[]',
	next_questions  TEXT NOT NULL DEFAULT '[]',
	request_id      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (conversation_id, ts)
);
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
	content,
	conversation_id UNINDEXED,
	ts UNINDEXED
);
`

// SQLite implements Store on a single SQLite database: the messages table is
// the primary ordered store, the FTS5 virtual table the secondary index.
type SQLite struct {
	db *sql.DB

	mu     sync.Mutex
	lastTS map[string]time.Time
	now    func() time.Time
}

// NewSQLite prepares the schema and returns a ready store.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("message log schema: %w", err)
	}
	return &SQLite{
		db:     db,
		lastTS: make(map[string]time.Time),
		now:    time.Now,
	}, nil
}

// nextTimestamp assigns a fresh, strictly increasing sort key for the
// conversation. Concurrent appends on one conversation may complete out of
// order, but each holds a distinct key.
func (s *SQLite) nextTimestamp(conversationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	if last, ok := s.lastTS[conversationID]; ok && !ts.After(last) {
		ts = last.Add(time.Microsecond)
	}
	s.lastTS[conversationID] = ts
	return ts.Format(tsLayout)
}

func (s *SQLite) Append(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if msg.ConversationID == "" {
		return chat.Message{}, chat.BadRequest("conversation id is required")
	}

	msg.Timestamp = s.nextTimestamp(msg.ConversationID)
	links, err := json.Marshal(orEmpty(msg.Links))
	if err != nil {
		return chat.Message{}, fmt.Errorf("marshal links: %w", err)
	}
	next, err := json.Marshal(orEmpty(msg.NextQuestions))
	if err != nil {
		return chat.Message{}, fmt.Errorf("marshal next questions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, ts, role, content, links, next_questions, request_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.Timestamp, string(msg.Role), msg.Content, string(links), string(next), msg.RequestID,
	)
	if err != nil {
		return chat.Message{}, chat.StoreUnavailable("message log append failed", err)
	}

	// Secondary index is best-effort; search lags rather than the exchange
	// failing.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages_fts (content, conversation_id, ts) VALUES (?, ?, ?)`,
		msg.Content, msg.ConversationID, msg.Timestamp,
	); err != nil {
		log.Printf("[messagelog] secondary index write failed conversation=%s ts=%s: %v",
			msg.ConversationID, msg.Timestamp, err)
	}

	return msg, nil
}

func (s *SQLite) Page(ctx context.Context, conversationID string, limit int, cursor string, forward bool) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ts, role, content, links, next_questions, request_id
		FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}

	if forward {
		if cursor != "" {
			query += ` AND ts > ?`
			args = append(args, cursor)
		}
		query += ` ORDER BY ts ASC LIMIT ?`
	} else {
		if cursor != "" {
			query += ` AND ts < ?`
			args = append(args, cursor)
		}
		query += ` ORDER BY ts DESC LIMIT ?`
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, chat.StoreUnavailable("message log query failed", err)
	}
	defer rows.Close()

	return scanMessages(rows, conversationID)
}

func (s *SQLite) Around(ctx context.Context, conversationID, timestamp string, limit int) ([]chat.Message, []chat.Message, error) {
	older, err := s.Page(ctx, conversationID, limit, timestamp, false)
	if err != nil {
		return nil, nil, err
	}
	newer, err := s.Page(ctx, conversationID, limit, timestamp, true)
	if err != nil {
		return nil, nil, err
	}
	return older, newer, nil
}

func (s *SQLite) DeleteAt(ctx context.Context, conversationID, timestamp string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ? AND ts = ?`,
		conversationID, timestamp,
	)
	if err != nil {
		return false, chat.StoreUnavailable("message log delete failed", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, chat.StoreUnavailable("message log delete failed", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages_fts WHERE conversation_id = ? AND ts = ?`,
		conversationID, timestamp,
	); err != nil {
		log.Printf("[messagelog] secondary index delete failed conversation=%s ts=%s: %v",
			conversationID, timestamp, err)
	}
	return true, nil
}

func (s *SQLite) Search(ctx context.Context, conversationID, query string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, highlight(messages_fts, 0, '<em>', '</em>')
		 FROM messages_fts
		 WHERE conversation_id = ? AND messages_fts MATCH ?
		 ORDER BY ts DESC`,
		conversationID, query,
	)
	if err != nil {
		return nil, chat.StoreUnavailable("message search failed", err)
	}
	defer rows.Close()

	type hit struct {
		ts          string
		highlighted string
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.ts, &h.highlighted); err != nil {
			return nil, chat.StoreUnavailable("message search scan failed", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, chat.StoreUnavailable("message search failed", err)
	}

	// Re-apply the highlight against the stored content: the index copy may
	// lag behind the primary store, so the marked-up index text is only used
	// to learn which term matched.
	results := make([]chat.Message, 0, len(hits))
	for _, h := range hits {
		msg, err := s.getAt(ctx, conversationID, h.ts)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			// Deleted from the primary store; index entry is stale.
			continue
		}
		msg.Content = applyHighlight(msg.Content, h.highlighted)
		results = append(results, *msg)
	}
	return results, nil
}

func (s *SQLite) getAt(ctx context.Context, conversationID, ts string) (*chat.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ts, role, content, links, next_questions, request_id
		 FROM messages WHERE conversation_id = ? AND ts = ?`,
		conversationID, ts,
	)
	msg, err := scanMessage(row.Scan, conversationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, chat.StoreUnavailable("message lookup failed", err)
	}
	return &msg, nil
}

func scanMessages(rows *sql.Rows, conversationID string) ([]chat.Message, error) {
	var out []chat.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan, conversationID)
		if err != nil {
			return nil, chat.StoreUnavailable("message log scan failed", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, chat.StoreUnavailable("message log query failed", err)
	}
	return out, nil
}

func scanMessage(scan func(dest ...any) error, conversationID string) (chat.Message, error) {
	var (
		msg         chat.Message
		role        string
		linksRaw    string
		questionRaw string
	)
	if err := scan(&msg.Timestamp, &role, &msg.Content, &linksRaw, &questionRaw, &msg.RequestID); err != nil {
		return chat.Message{}, err
	}
	msg.ConversationID = conversationID
	msg.Role = chat.Role(role)
	if err := json.Unmarshal([]byte(linksRaw), &msg.Links); err != nil {
		return chat.Message{}, err
	}
	if err := json.Unmarshal([]byte(questionRaw), &msg.NextQuestions); err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
