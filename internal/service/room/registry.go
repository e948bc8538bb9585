package room

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/companionlabs/backend/internal/model/account"
	"github.com/companionlabs/backend/internal/service/notify"
)

const shardCount = 32

// Registry tracks how many live connections are attached to each
// conversation. Mutations for one conversation are serialized; different
// conversations only contend within a shard, never globally.
type Registry struct {
	shards    [shardCount]registryShard
	evaluator notify.Evaluator
}

type registryShard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	count     int
	role      account.Role
	startedAt time.Time
	initOnce  sync.Once
}

// NewRegistry returns an empty registry. The evaluator may be nil, in which
// case no post-session evaluation is triggered.
func NewRegistry(evaluator notify.Evaluator) *Registry {
	r := &Registry{evaluator: evaluator}
	for i := range r.shards {
		r.shards[i].entries = make(map[string]*entry)
	}
	return r
}

func (r *Registry) shard(conversationID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &r.shards[h.Sum32()%shardCount]
}

// Join registers one more connection on the conversation. The init callback
// runs exactly once per registry entry lifetime (i.e. once per transition
// from Empty to Active) and concurrent joiners block until it completes, so
// first-join work such as welcome synthesis happens before anyone replays
// history. Only the joiner that ran init observes its error.
func (r *Registry) Join(conversationID string, role account.Role, init func() error) error {
	shard := r.shard(conversationID)

	shard.mu.Lock()
	e, ok := shard.entries[conversationID]
	if !ok {
		e = &entry{role: role, startedAt: time.Now().UTC()}
		shard.entries[conversationID] = e
	}
	e.count++
	shard.mu.Unlock()

	var initErr error
	e.initOnce.Do(func() {
		if init != nil {
			initErr = init()
		}
	})
	return initErr
}

// Leave deregisters one connection. When the last connection of a
// learner-tracked conversation leaves, the progress evaluation trigger fires
// asynchronously with the session start time and the entry returns to Empty.
func (r *Registry) Leave(conversationID string) {
	shard := r.shard(conversationID)

	shard.mu.Lock()
	e, ok := shard.entries[conversationID]
	if !ok {
		shard.mu.Unlock()
		log.Printf("[room] leave on unknown conversation=%s", conversationID)
		return
	}
	e.count--
	if e.count > 0 {
		shard.mu.Unlock()
		return
	}
	delete(shard.entries, conversationID)
	role, startedAt := e.role, e.startedAt
	shard.mu.Unlock()

	if role != account.RoleLearner || r.evaluator == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.evaluator.EvaluateProgress(ctx, conversationID, startedAt); err != nil {
			log.Printf("[room] progress evaluation trigger failed conversation=%s: %v", conversationID, err)
		}
	}()
}

// Occupancy reports the live connection count for a conversation.
func (r *Registry) Occupancy(conversationID string) int {
	shard := r.shard(conversationID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if e, ok := shard.entries[conversationID]; ok {
		return e.count
	}
	return 0
}
