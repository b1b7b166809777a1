package cache

import (
	"context"
	"sync"
	"time"

	"github.com/amirasaad/bankcore/pkg/domain/account"
)

const cleanupInterval = time.Minute

// MemoryCache implements cache.AccountCache using in-memory storage.
type MemoryCache struct {
	entries map[int64]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
	stop    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	acc       *account.Account
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache. A ttl of zero keeps entries
// until they are deleted.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[int64]*cacheEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanup(cleanupInterval)
	}
	return c
}

// Get returns a copy of the cached account.
func (c *MemoryCache) Get(_ context.Context, id int64) (*account.Account, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[id]
	if !exists || entry.expired(time.Now()) {
		return nil, false, nil
	}
	return entry.acc.Clone(), true, nil
}

// Set stores a copy of acc.
func (c *MemoryCache) Set(_ context.Context, acc *account.Account) error {
	entry := &cacheEntry{acc: acc.Clone()}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[acc.ID] = entry
	c.mu.Unlock()
	return nil
}

// Delete removes id from the cache.
func (c *MemoryCache) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.evictExpired(now)
		}
	}
}

func (c *MemoryCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, id)
		}
	}
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
