package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"dexsync/internal/application/port"
)

type entry struct {
	val []byte
	at  time.Time
}

// Cache is the in-process read cache. TTL is fixed at construction;
// entries carry no locking beyond the map mutex, so concurrent readers
// may race to repopulate an expired key.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{
		entries: map[string]entry{},
		ttl:     ttl,
	}
}

func key(account, query string) string { return account + ":" + query }

func (c *Cache) Get(ctx context.Context, account, query string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key(account, query)]
	c.mu.RUnlock()
	if !ok || time.Since(e.at) >= c.ttl {
		return nil, false
	}
	return e.val, true
}

func (c *Cache) Set(ctx context.Context, account, query string, val []byte) error {
	c.mu.Lock()
	c.entries[key(account, query)] = entry{val: val, at: time.Now()}
	c.mu.Unlock()
	return nil
}

func (c *Cache) InvalidateAccount(ctx context.Context, account string) error {
	prefix := account + ":"
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	return nil
}

var _ port.Cache = (*Cache)(nil)
