package geocoding

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"incidentwatch/fingerprint"
)

// Cache stores geocoding outcomes keyed by normalized location text. A cached
// miss is stored with Found=false.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

// Entry is a cached outcome.
type Entry struct {
	Result Result `json:"result"`
	Found  bool   `json:"found"`
}

// CacheKey normalizes location text for cache lookups.
func CacheKey(text string) string {
	return strings.TrimSpace(fingerprint.Normalize(text))
}

// MemoryCache is an in-process cache with per-entry TTL and LRU eviction once
// MaxEntries is reached.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
	now        func() time.Time
}

type memoryItem struct {
	key       string
	entry     Entry
	expiresAt time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries items
// (default 10000).
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Entry{}, false, nil
	}
	item := el.Value.(*memoryItem)
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		c.removeElement(el)
		return Entry{}, false, nil
	}
	c.ll.MoveToFront(el)
	return item.entry, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	if el, ok := c.items[key]; ok {
		item := el.Value.(*memoryItem)
		item.entry, item.expiresAt = entry, expiresAt
		c.ll.MoveToFront(el)
		return nil
	}
	c.items[key] = c.ll.PushFront(&memoryItem{key: key, entry: entry, expiresAt: expiresAt})
	for c.ll.Len() > c.maxEntries {
		c.removeElement(c.ll.Back())
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *MemoryCache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*memoryItem).key)
}
