package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a TTL-based in-memory credential cache with
// stale-while-revalidate. Uses sync.Map for lock-free reads on the hot path.
type Cache struct {
	store sync.Map // map[string]*cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	actor      *Actor
	expiresAt  time.Time
	refreshing atomic.Bool
}

// CacheGetResult holds the result of a cache lookup.
type CacheGetResult struct {
	Actor        *Actor
	Hit          bool
	NeedsRefresh bool
}

// NewCache creates a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// Get performs a non-blocking cache lookup. An expired entry is still
// returned as a hit, with NeedsRefresh set for exactly one caller.
func (c *Cache) Get(token string) CacheGetResult {
	val, ok := c.store.Load(token)
	if !ok {
		return CacheGetResult{Hit: false}
	}

	entry := val.(*cacheEntry)
	now := time.Now()

	if now.Before(entry.expiresAt) {
		return CacheGetResult{Actor: entry.actor, Hit: true}
	}

	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return CacheGetResult{
		Actor:        entry.actor,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores an actor with a fresh TTL.
func (c *Cache) Set(token string, actor *Actor) {
	c.store.Store(token, &cacheEntry{
		actor:     actor,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *Cache) Delete(token string) {
	c.store.Delete(token)
}
