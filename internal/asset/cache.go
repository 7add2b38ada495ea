package asset

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ryohey/warp/internal/coerce"
)

// Cache memoizes successful lookups of another resolver. Concurrent lookups
// of the same asset share one call. Failures are not cached, so an asset
// that appears later resolves on the next attempt.
type Cache struct {
	next   coerce.AssetResolver
	mu     sync.RWMutex
	assets map[string]coerce.Asset
	flight singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

var _ coerce.AssetResolver = (*Cache)(nil)

// NewCache wraps next.
func NewCache(next coerce.AssetResolver) *Cache {
	return &Cache{next: next, assets: make(map[string]coerce.Asset)}
}

func cacheKey(id, kind string) string {
	return kind + "/" + id
}

// Resolve implements coerce.AssetResolver.
func (c *Cache) Resolve(ctx context.Context, id, kind string) (coerce.Asset, error) {
	key := cacheKey(id, kind)

	c.mu.RLock()
	a, ok := c.assets[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return a, nil
	}
	c.misses.Add(1)

	v, err, _ := c.flight.Do(key, func() (any, error) {
		a, err := c.next.Resolve(ctx, id, kind)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.assets[key] = a
		c.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return coerce.Asset{}, err
	}
	return v.(coerce.Asset), nil
}

// Invalidate drops every cached entry for id, e.g. after its blob was
// rebuilt.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, a := range c.assets {
		if a.ID == id {
			delete(c.assets, key)
		}
	}
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
