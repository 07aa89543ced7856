// Package cache memoizes resolved package metadata by the descriptor
// the caller asked for, so repeated requests for e.g. "express@^4" do
// not hit the registry again.
package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/denghongcai/npm-dep-tree-analyzer/metrics"
	"github.com/denghongcai/npm-dep-tree-analyzer/models"
)

// Metadata is a concurrency-safe memoization cache keyed by
// "{name}@{descriptor}". Concurrent misses for the same key share a
// single resolution.
type Metadata struct {
	mu      sync.RWMutex
	entries map[string]models.PackageInfo
	group   singleflight.Group
	metrics metrics.Metrics
}

func New(m metrics.Metrics) *Metadata {
	return &Metadata{
		entries: make(map[string]models.PackageInfo),
		metrics: m,
	}
}

// GetOrResolve returns the cached PackageInfo for (name, descriptor),
// calling resolve on a miss. Only one resolve runs per key at a time;
// duplicate concurrent callers wait for and share its result.
func (c *Metadata) GetOrResolve(ctx context.Context, name, descriptor string, resolve func(ctx context.Context) (models.PackageInfo, error)) (models.PackageInfo, error) {
	key := Key(name, descriptor)

	c.mu.RLock()
	info, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.IncrementCacheHits(ctx)
		return info, nil
	}

	c.metrics.IncrementCacheMisses(ctx)
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A previous flight may have populated the entry between the
		// read above and this call.
		c.mu.RLock()
		info, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return info, nil
		}

		info, err := resolve(ctx)
		if err != nil {
			return models.PackageInfo{}, err
		}

		c.mu.Lock()
		c.entries[key] = info
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return models.PackageInfo{}, err
	}
	return v.(models.PackageInfo), nil
}

// Len returns the number of cached entries.
func (c *Metadata) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Key builds the cache key for a (name, descriptor) pair.
func Key(name, descriptor string) string {
	return fmt.Sprintf("%s@%s", name, descriptor)
}
