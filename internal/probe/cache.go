package probe

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/stacklok/font-sources/internal/candidates"
)

// Cache memoizes probe results by repository URL for the duration of a run.
// Concurrent requests for the same repository share a single probe.
type Cache struct {
	group   singleflight.Group
	mu      sync.RWMutex
	results map[string]Result
	probes  atomic.Int64
}

// NewCache returns an empty Cache
func NewCache() *Cache {
	return &Cache{results: make(map[string]Result)}
}

// Lookup returns the result recorded for a repository
func (c *Cache) Lookup(repoURL string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[repoURL]
	return result, ok
}

// Probes returns how many probes were actually performed through the cache
func (c *Cache) Probes() int {
	return int(c.probes.Load())
}

// Len returns the number of cached results
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

func (c *Cache) probe(ctx context.Context, next Prober, candidate candidates.Candidate) Result {
	if result, ok := c.Lookup(candidate.URL); ok {
		return result
	}

	v, _, _ := c.group.Do(candidate.URL, func() (any, error) {
		if result, ok := c.Lookup(candidate.URL); ok {
			return result, nil
		}
		c.probes.Add(1)
		result := next.Probe(ctx, candidate)

		c.mu.Lock()
		c.results[candidate.URL] = result
		c.mu.Unlock()
		return result, nil
	})
	return v.(Result)
}

type cachingProber struct {
	next  Prober
	cache *Cache
}

// WithCache returns a Prober that consults cache before calling next
func WithCache(next Prober, cache *Cache) Prober {
	return &cachingProber{next: next, cache: cache}
}

func (p *cachingProber) Probe(ctx context.Context, candidate candidates.Candidate) Result {
	return p.cache.probe(ctx, p.next, candidate)
}
