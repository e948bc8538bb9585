package messagelog

import (
	"context"

	"github.com/companionlabs/backend/internal/model/chat"
)

// Store is the append-only conversation log. The primary store orders
// messages by (conversation, timestamp); a secondary full-text index serves
// Search only and is maintained best-effort.
type Store interface {
	// Append persists a message, assigning its server-side timestamp. The
	// returned message carries the assigned sort key. A primary-store failure
	// is a StoreUnavailable error and means the message must not be treated
	// as saved.
	Append(ctx context.Context, msg chat.Message) (chat.Message, error)

	// Page returns up to limit messages. Backward paging (the default,
	// forward=false) yields newest-first strictly decreasing timestamps,
	// starting below cursor when cursor is non-empty. Forward paging yields
	// oldest-first strictly increasing timestamps above cursor.
	Page(ctx context.Context, conversationID string, limit int, cursor string, forward bool) ([]chat.Message, error)

	// Around fetches up to limit messages older and limit newer than the
	// given timestamp, as two independent queries.
	Around(ctx context.Context, conversationID, timestamp string, limit int) (older, newer []chat.Message, err error)

	// DeleteAt removes the message at an exact timestamp key. It reports
	// false, not an error, when no record existed.
	DeleteAt(ctx context.Context, conversationID, timestamp string) (bool, error)

	// Search delegates to the full-text index and returns matches with the
	// search term highlighted inside the stored content.
	Search(ctx context.Context, conversationID, query string) ([]chat.Message, error)
}
