package quota

import (
	"context"
	"time"

	"github.com/companionlabs/backend/internal/model/account"
)

// Meter tracks usage counters per subject. Text generation is metered per
// chatter per hour; image generation per billing group per billing period.
// Counters only grow; rollover happens by addressing a new period key.
type Meter interface {
	// TextCount reads the current hour's count. Guardian traffic is not
	// metered: it reports zero without touching the store.
	TextCount(ctx context.Context, subjectID string, role account.Role) (int, error)

	// IncrTextCount atomically increments the current hour's bucket and
	// returns the new value.
	IncrTextCount(ctx context.Context, subjectID string) (int, error)

	// ImageCount reads the current billing period's count for a group.
	ImageCount(ctx context.Context, groupID string, periodAnchor time.Time) (int, error)

	// IncrImageCount atomically increments the billing period bucket and
	// returns the new value.
	IncrImageCount(ctx context.Context, groupID string, periodAnchor time.Time) (int, error)
}

// HourKey buckets a point in time into its UTC hour.
func HourKey(now time.Time) string {
	return now.UTC().Truncate(time.Hour).Format(time.RFC3339)
}

// MonthKey computes the billing-period bucket: the anchor's day-of-month
// applied to the current month, rolled back one month when today's day
// precedes the anchor day.
func MonthKey(now, periodAnchor time.Time) string {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), periodAnchor.Day(), 0, 0, 0, 0, time.UTC)
	if now.Day() < periodAnchor.Day() {
		start = start.AddDate(0, -1, 0)
	}
	return start.Format(time.RFC3339)
}
