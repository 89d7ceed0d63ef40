// Package cache stores rendered chart documents keyed by their selection, so
// repeat dashboard loads skip the render. Backends: in-process map or
// memcached, chosen by config.
package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache is the rendered-chart store. Get returns the cached document if
// present and not expired; Set stores one with a TTL. Values are shared
// slices; callers must not modify them.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key builds the cache key for a chart selection. Country codes are
// upper-cased and sorted so the same selection in any order shares one entry.
func Key(kind, indicator string, year int, countries []string) string {
	base := fmt.Sprintf("%s:%s:%d", kind, indicator, year)
	if len(countries) == 0 {
		return base
	}
	codes := make([]string, len(countries))
	for i, c := range countries {
		codes[i] = strings.ToUpper(c)
	}
	sort.Strings(codes)
	return base + ":" + strings.Join(codes, ",")
}

// InMemoryCache implements Cache with a mutex-guarded map and TTL-based
// expiration. Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cached document for the key if present and not expired.
// Returns (value, true, nil) on hit, (nil, false, nil) on miss or expiration.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a document with the specified TTL. The entry expires after TTL
// elapses and is removed on the next Get.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
