// Package cache is a process-local TTL cache for rendered documents. It
// keeps its own set of live keys so entries can be counted, listed and
// removed by prefix.
package cache

import (
	"slices"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// NoExpiration keeps an entry until it is removed.
	NoExpiration time.Duration = gocache.NoExpiration

	// DefaultExpiration selects the TTL the cache was created with.
	DefaultExpiration time.Duration = gocache.DefaultExpiration

	chapterPrefix = "chapter-content:"
	bookPrefix    = "book-content:"
)

// ChapterKey is the key of a rendered chapter. chapterID is used as
// requested, fragment included.
func ChapterKey(bookID, chapterID, styleHash string) string {
	return chapterPrefix + bookID + ":" + chapterID + ":" + styleHash
}

// ChapterPrefix selects every rendered chapter of a book.
func ChapterPrefix(bookID string) string {
	return chapterPrefix + bookID + ":"
}

// BookKey is the key of the concatenated book document.
func BookKey(bookID string) string {
	return bookPrefix + bookID
}

// Cache is safe for concurrent use.
type Cache struct {
	store *gocache.Cache
	log   *zap.Logger

	mu   sync.RWMutex
	keys map[string]struct{}

	// clearMu serializes Clear and RemoveByPrefix.
	clearMu sync.Mutex

	group singleflight.Group
}

// New creates a cache whose entries expire after ttl unless set with an
// explicit TTL. Expired entries are purged every cleanup interval; a
// non-positive interval disables the janitor and expired entries are then
// dropped on access.
func New(ttl, cleanup time.Duration, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = NoExpiration
	}
	c := &Cache{
		store: gocache.New(ttl, cleanup),
		log:   log.Named("cache"),
		keys:  make(map[string]struct{}),
	}
	c.store.OnEvicted(c.evicted)
	return c
}

// Get returns the value stored under key.
func (c *Cache) Get(key string) (any, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		// Expired but not yet purged, or never set.
		c.forget(key)
		return nil, false
	}
	return v, true
}

// Get returns the value under key when it holds a T. A missing entry or a
// value of another type yields the zero T.
func Get[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Set stores v under key. A zero ttl uses the cache default; NoExpiration
// keeps the entry until removed.
func (c *Cache) Set(key string, v any, ttl time.Duration) {
	if ttl < 0 {
		ttl = NoExpiration
	}
	c.store.Set(key, v, ttl)
	c.track(key)
	// A concurrent Remove may have deleted the entry between the two
	// calls above; only keep tracking keys the store still holds.
	if _, ok := c.store.Get(key); !ok {
		c.untrack(key)
	}
}

// Remove deletes key. Removing a missing key is a no-op.
func (c *Cache) Remove(key string) {
	c.store.Delete(key)
	c.forget(key)
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear() int {
	return c.RemoveByPrefix("")
}

// RemoveByPrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (c *Cache) RemoveByPrefix(prefix string) int {
	c.clearMu.Lock()
	defer c.clearMu.Unlock()

	// Entries are removed one by one rather than flushed so a Set racing
	// with the loop is either removed with its key or kept and tracked.
	removed := 0
	for _, k := range c.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		c.Remove(k)
		removed++
	}
	if removed > 0 {
		c.log.Debug("Cache entries removed", zap.String("prefix", prefix), zap.Int("entries", removed))
	}
	return removed
}

// GetOrCreate returns the value under key, calling create to produce and
// store it on a miss. Concurrent misses on the same key share one call.
// Errors from create are returned and nothing is stored.
func (c *Cache) GetOrCreate(key string, create func() (any, error), ttl time.Duration) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := create()
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	return v, err
}

// Count returns the number of tracked entries.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Keys returns the tracked keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.keys))
	for k := range c.keys {
		out = append(out, k)
	}
	c.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (c *Cache) track(key string) {
	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
}

func (c *Cache) untrack(key string) {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
}

// forget untracks a key the store no longer holds. A Set racing with the
// purge is re-tracked once it is visible again.
func (c *Cache) forget(key string) {
	c.untrack(key)
	if _, ok := c.store.Get(key); ok {
		c.track(key)
	}
}

func (c *Cache) evicted(key string, _ any) {
	c.forget(key)
}
