package identity

import (
	"sync"

	"github.com/aaronzipp/snake-arena/internal/models"
)

// Cache maps connection ids to authenticated identities
type Cache struct {
	bindings map[string]models.Identity
	mu       sync.RWMutex
}

// NewCache creates an empty identity cache
func NewCache() *Cache {
	return &Cache{bindings: make(map[string]models.Identity)}
}

// Bind associates a connection with an identity, replacing any earlier binding
func (c *Cache) Bind(connID string, who models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[connID] = who
}

// Lookup returns the identity bound to a connection
func (c *Cache) Lookup(connID string) (models.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	who, ok := c.bindings[connID]
	return who, ok
}

// Purge removes and returns the binding for a connection
func (c *Cache) Purge(connID string) (models.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	who, ok := c.bindings[connID]
	delete(c.bindings, connID)
	return who, ok
}

// Len returns the number of bound connections
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bindings)
}
