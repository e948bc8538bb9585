package account

import (
	"context"
	"sync"

	"github.com/companionlabs/backend/internal/model/chat"
)

// MemoryDirectory implements Directory with in-memory maps, suitable for
// development and tests. Production deployments plug in the identity service
// client instead.
type MemoryDirectory struct {
	mu       sync.RWMutex
	chatters map[string]Chatter
	packages map[string]Package
	groups   map[string]BillingGroup
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		chatters: make(map[string]Chatter),
		packages: make(map[string]Package),
		groups:   make(map[string]BillingGroup),
	}
}

// PutChatter registers a chatter with its active package.
func (d *MemoryDirectory) PutChatter(c Chatter, pkg Package) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chatters[c.ID] = c
	d.packages[c.ID] = pkg
}

// PutBillingGroup registers a billing group.
func (d *MemoryDirectory) PutBillingGroup(g BillingGroup) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[g.ID] = g
}

func (d *MemoryDirectory) Chatter(_ context.Context, id string, _ Role) (Chatter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.chatters[id]
	if !ok {
		return Chatter{}, chat.ItemNotFound("user or parent not found: " + id)
	}
	return c, nil
}

func (d *MemoryDirectory) ActivePackage(_ context.Context, chatterID string, _ Role) (Package, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.packages[chatterID]
	if !ok {
		return Package{}, chat.ItemNotFound("package not found for chatter: " + chatterID)
	}
	return p, nil
}

func (d *MemoryDirectory) BillingGroup(_ context.Context, id string) (BillingGroup, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[id]
	if !ok {
		return BillingGroup{}, chat.ItemNotFound("billing group not found: " + id)
	}
	return g, nil
}
