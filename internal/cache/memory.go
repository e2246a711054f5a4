package cache

import (
	"sync"
	"time"

	"github.com/drallgood/abs-hardcover-progress/internal/logger"
)

// Cache is a small process-local key/value store with optional expiry.
type Cache[K comparable, V any] interface {
	// Set stores value under key. A ttl <= 0 never expires.
	Set(key K, value V, ttl time.Duration)
	// Get returns the value and whether it was present and fresh
	Get(key K) (V, bool)
	Delete(key K)
	Clear()
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type memoryCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	log   *logger.Logger
	now   func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache[K comparable, V any](log *logger.Logger) Cache[K, V] {
	return &memoryCache[K, V]{
		items: make(map[K]entry[V]),
		log:   log,
		now:   time.Now,
	}
}

func (c *memoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	size := len(c.items)
	c.mu.Unlock()

	c.log.Debug("Memory cache set", map[string]interface{}{
		"key":        key,
		"cache_size": size,
	})
}

func (c *memoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !found {
		return zero, false
	}
	if item.expired(c.now()) {
		c.mu.Lock()
		// re-check under the write lock; a concurrent Set may have refreshed it
		if cur, ok := c.items[key]; ok && cur.expired(c.now()) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return item.value, true
}

func (c *memoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *memoryCache[K, V]) Clear() {
	c.mu.Lock()
	c.items = make(map[K]entry[V])
	c.mu.Unlock()
}

func (c *memoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// WithTTL wraps cache so that every Set uses ttl regardless of the argument.
func WithTTL[K comparable, V any](cache Cache[K, V], ttl time.Duration) Cache[K, V] {
	return &ttlWrapper[K, V]{Cache: cache, ttl: ttl}
}

type ttlWrapper[K comparable, V any] struct {
	Cache[K, V]
	ttl time.Duration
}

func (w *ttlWrapper[K, V]) Set(key K, value V, _ time.Duration) {
	w.Cache.Set(key, value, w.ttl)
}
