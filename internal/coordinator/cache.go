package coordinator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/loanflow/loan-engine/internal/domain"
)

// Cache is the in-memory application state the board views render from.
// Records are stored as copies: readers get snapshots and writers swap
// whole records, so a half-applied mutation is never observable.
type Cache struct {
	mu   sync.RWMutex
	apps map[uuid.UUID]*domain.LoanApplication
}

func NewCache() *Cache {
	return &Cache{apps: make(map[uuid.UUID]*domain.LoanApplication)}
}

// Load replaces the cache contents with a fresh fetch result.
func (c *Cache) Load(apps []*domain.LoanApplication) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apps = make(map[uuid.UUID]*domain.LoanApplication, len(apps))
	for _, app := range apps {
		c.apps[app.ID] = app.Clone()
	}
}

// Get returns a snapshot of the record, or nil if absent.
func (c *Cache) Get(id uuid.UUID) *domain.LoanApplication {
	c.mu.RLock()
	defer c.mu.RUnlock()
	app, ok := c.apps[id]
	if !ok {
		return nil
	}
	return app.Clone()
}

// Put stores a copy of the record, replacing any previous version.
func (c *Cache) Put(app *domain.LoanApplication) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apps[app.ID] = app.Clone()
}

// Delete drops the record, used after borrower cancellation.
func (c *Cache) Delete(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.apps, id)
}

// List returns snapshots of every cached record.
func (c *Cache) List() []*domain.LoanApplication {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.LoanApplication, 0, len(c.apps))
	for _, app := range c.apps {
		out = append(out, app.Clone())
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.apps)
}
