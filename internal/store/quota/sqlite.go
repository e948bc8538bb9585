package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/companionlabs/backend/internal/model/account"
	"github.com/companionlabs/backend/internal/model/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS text_counters (
	subject_id TEXT NOT NULL,
	hour       TEXT NOT NULL,
	count      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (subject_id, hour)
);
CREATE TABLE IF NOT EXISTS image_counters (
	group_id    TEXT NOT NULL,
	month_start TEXT NOT NULL,
	count       INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (group_id, month_start)
);
`

// SQLiteMeter implements Meter with upsert increments so concurrent
// exchanges for one subject never lose updates; the read-modify-write lives
// in the store, not the caller.
type SQLiteMeter struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteMeter prepares the counter tables.
func NewSQLiteMeter(db *sql.DB) (*SQLiteMeter, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("quota schema: %w", err)
	}
	return &SQLiteMeter{db: db, now: time.Now}, nil
}

func (m *SQLiteMeter) TextCount(ctx context.Context, subjectID string, role account.Role) (int, error) {
	if role == account.RoleGuardian {
		return 0, nil
	}
	return m.read(ctx,
		`SELECT count FROM text_counters WHERE subject_id = ? AND hour = ?`,
		subjectID, HourKey(m.now()))
}

func (m *SQLiteMeter) IncrTextCount(ctx context.Context, subjectID string) (int, error) {
	return m.increment(ctx,
		`INSERT INTO text_counters (subject_id, hour, count) VALUES (?, ?, 1)
		 ON CONFLICT (subject_id, hour) DO UPDATE SET count = count + 1
		 RETURNING count`,
		subjectID, HourKey(m.now()))
}

func (m *SQLiteMeter) ImageCount(ctx context.Context, groupID string, periodAnchor time.Time) (int, error) {
	return m.read(ctx,
		`SELECT count FROM image_counters WHERE group_id = ? AND month_start = ?`,
		groupID, MonthKey(m.now(), periodAnchor))
}

func (m *SQLiteMeter) IncrImageCount(ctx context.Context, groupID string, periodAnchor time.Time) (int, error) {
	return m.increment(ctx,
		`INSERT INTO image_counters (group_id, month_start, count) VALUES (?, ?, 1)
		 ON CONFLICT (group_id, month_start) DO UPDATE SET count = count + 1
		 RETURNING count`,
		groupID, MonthKey(m.now(), periodAnchor))
}

func (m *SQLiteMeter) read(ctx context.Context, query, subject, bucket string) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx, query, subject, bucket).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, chat.StoreUnavailable("quota read failed", err)
	}
	return count, nil
}

func (m *SQLiteMeter) increment(ctx context.Context, query, subject, bucket string) (int, error) {
	var count int
	if err := m.db.QueryRowContext(ctx, query, subject, bucket).Scan(&count); err != nil {
		return 0, chat.StoreUnavailable("quota increment failed", err)
	}
	return count, nil
}
