package cache

import (
	"context"
	"sync"
	"time"

	"typeproof/internal/verify"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCache is an in-process ReportCache. Reports are stored serialized
// so callers never share mutable state with the cache.
type MemoryCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	docs  map[string]map[string]memoryEntry
	limit int
	size  int
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMemoryTTL sets the entry lifetime. Non-positive values use DefaultTTL.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMemoryClock overrides the time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMemoryLimit caps the number of cached reports. When full, Set evicts
// expired entries first and then whole documents.
func WithMemoryLimit(n int) MemoryOption {
	return func(c *MemoryCache) {
		c.limit = n
	}
}

// NewMemoryCache constructs an empty in-process cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		ttl:   DefaultTTL,
		now:   time.Now,
		docs:  make(map[string]map[string]memoryEntry),
		limit: 1024,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *MemoryCache) Get(ctx context.Context, documentID, key string) (*verify.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	e, ok := c.docs[documentID][key]
	if ok && !c.now().Before(e.expires) {
		c.deleteLocked(documentID, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return nil, ErrMiss
	}
	return decode(e.data)
}

func (c *MemoryCache) Set(ctx context.Context, documentID, key string, report *verify.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(report)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.docs[documentID]
	if entries == nil {
		entries = make(map[string]memoryEntry)
		c.docs[documentID] = entries
	}
	if _, exists := entries[key]; !exists {
		if c.limit > 0 && c.size >= c.limit {
			c.evictLocked(documentID)
		}
		c.size++
	}
	entries[key] = memoryEntry{data: data, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) InvalidateDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.size -= len(c.docs[documentID])
	delete(c.docs, documentID)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached reports, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *MemoryCache) deleteLocked(documentID, key string) {
	entries := c.docs[documentID]
	if _, ok := entries[key]; !ok {
		return
	}
	delete(entries, key)
	c.size--
	if len(entries) == 0 {
		delete(c.docs, documentID)
	}
}

// evictLocked makes room for one entry, sparing keep when possible.
func (c *MemoryCache) evictLocked(keep string) {
	now := c.now()
	for doc, entries := range c.docs {
		for key, e := range entries {
			if !now.Before(e.expires) {
				c.deleteLocked(doc, key)
			}
		}
	}
	if c.size < c.limit {
		return
	}
	for doc, entries := range c.docs {
		if doc == keep && len(c.docs) > 1 {
			continue
		}
		for key := range entries {
			c.deleteLocked(doc, key)
			if c.size < c.limit {
				return
			}
		}
	}
}
