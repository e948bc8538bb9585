package quota

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/companionlabs/backend/internal/model/account"
)

func newTestMeter(t *testing.T) *SQLiteMeter {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	meter, err := NewSQLiteMeter(db)
	if err != nil {
		t.Fatalf("create meter: %v", err)
	}
	return meter
}

func TestTextCountStartsAtZero(t *testing.T) {
	meter := newTestMeter(t)
	count, err := meter.TextCount(context.Background(), "learner-1", account.RoleLearner)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestGuardianTextCountIsNotMetered(t *testing.T) {
	meter := newTestMeter(t)
	if _, err := meter.IncrTextCount(context.Background(), "guardian-1"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	count, err := meter.TextCount(context.Background(), "guardian-1", account.RoleGuardian)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected guardian reads to report 0, got %d", count)
	}
}

func TestConcurrentTextIncrementsLoseNothing(t *testing.T) {
	meter := newTestMeter(t)
	const workers = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := meter.IncrTextCount(context.Background(), "learner-1"); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	count, err := meter.TextCount(context.Background(), "learner-1", account.RoleLearner)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count != workers {
		t.Fatalf("expected %d, got %d", workers, count)
	}
}

func TestTextCountRollsOverByHour(t *testing.T) {
	meter := newTestMeter(t)
	now := time.Date(2025, time.March, 1, 10, 30, 0, 0, time.UTC)
	meter.now = func() time.Time { return now }

	if _, err := meter.IncrTextCount(context.Background(), "learner-1"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	now = now.Add(time.Hour)
	count, err := meter.TextCount(context.Background(), "learner-1", account.RoleLearner)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected fresh hour bucket, got %d", count)
	}
}

func TestImageCountSharedPerGroup(t *testing.T) {
	meter := newTestMeter(t)
	anchor := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		count, err := meter.IncrImageCount(context.Background(), "family-1", anchor)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if count != i {
			t.Fatalf("expected running count %d, got %d", i, count)
		}
	}

	count, err := meter.ImageCount(context.Background(), "family-1", anchor)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}

func TestHourKeyTruncates(t *testing.T) {
	key := HourKey(time.Date(2025, time.March, 1, 10, 59, 59, 0, time.UTC))
	if key != "2025-03-01T10:00:00Z" {
		t.Fatalf("unexpected hour key %q", key)
	}
}

func TestMonthKeyAnchorDay(t *testing.T) {
	anchor := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{
			name: "after anchor day stays in current month",
			now:  time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC),
			want: "2025-03-15T00:00:00Z",
		},
		{
			name: "on anchor day stays in current month",
			now:  time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
			want: "2025-03-15T00:00:00Z",
		},
		{
			name: "before anchor day rolls back one month",
			now:  time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
			want: "2025-02-15T00:00:00Z",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MonthKey(tc.now, anchor); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
