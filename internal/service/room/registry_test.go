package room

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/companionlabs/backend/internal/model/account"
)

type fakeEvaluator struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{done: make(chan struct{}, 8)}
}

func (f *fakeEvaluator) EvaluateProgress(_ context.Context, conversationID string, _ time.Time) error {
	f.mu.Lock()
	f.calls = append(f.calls, conversationID)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeEvaluator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeEvaluator) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for evaluation trigger")
	}
}

func TestJoinRunsInitExactlyOnce(t *testing.T) {
	registry := NewRegistry(nil)

	var initCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Join("conv", account.RoleLearner, func() error {
				initCount.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := initCount.Load(); got != 1 {
		t.Fatalf("expected init to run once, ran %d times", got)
	}
	if occ := registry.Occupancy("conv"); occ != 16 {
		t.Fatalf("expected occupancy 16, got %d", occ)
	}
}

func TestLastLearnerLeaveTriggersEvaluationOnce(t *testing.T) {
	evaluator := newFakeEvaluator()
	registry := NewRegistry(evaluator)

	registry.Join("conv", account.RoleLearner, nil)
	registry.Join("conv", account.RoleLearner, nil)

	registry.Leave("conv")
	if count := evaluator.callCount(); count != 0 {
		t.Fatalf("evaluation fired while connections remain: %d", count)
	}

	registry.Leave("conv")
	evaluator.wait(t)
	if count := evaluator.callCount(); count != 1 {
		t.Fatalf("expected exactly one evaluation, got %d", count)
	}
	if occ := registry.Occupancy("conv"); occ != 0 {
		t.Fatalf("expected empty room, occupancy %d", occ)
	}
}

func TestGuardianLeaveDoesNotTriggerEvaluation(t *testing.T) {
	evaluator := newFakeEvaluator()
	registry := NewRegistry(evaluator)

	registry.Join("conv", account.RoleGuardian, nil)
	registry.Leave("conv")

	select {
	case <-evaluator.done:
		t.Fatal("guardian session must not trigger evaluation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLeaveOnUnknownConversationIsSafe(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Leave("ghost")
	if occ := registry.Occupancy("ghost"); occ != 0 {
		t.Fatalf("expected occupancy 0, got %d", occ)
	}
}

func TestRejoinAfterEmptyRunsInitAgain(t *testing.T) {
	registry := NewRegistry(nil)

	var initCount atomic.Int32
	init := func() error {
		initCount.Add(1)
		return nil
	}

	registry.Join("conv", account.RoleLearner, init)
	registry.Leave("conv")
	registry.Join("conv", account.RoleLearner, init)

	if got := initCount.Load(); got != 2 {
		t.Fatalf("expected init per entry lifetime, ran %d times", got)
	}
}

func TestHubBroadcastReachesOnlySubscribedRoom(t *testing.T) {
	hub := NewHub()
	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	hub.Subscribe("conv-a", a)
	hub.Subscribe("conv-b", b)

	hub.Broadcast("conv-a", "chat", "hello")

	if got := a.count(); got != 1 {
		t.Fatalf("expected 1 delivery to conv-a subscriber, got %d", got)
	}
	if got := b.count(); got != 0 {
		t.Fatalf("expected no deliveries to conv-b subscriber, got %d", got)
	}

	hub.Unsubscribe("conv-a", a)
	hub.Broadcast("conv-a", "chat", "again")
	if got := a.count(); got != 1 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", got)
	}
}

type recordingSubscriber struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSubscriber) Deliver(event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
