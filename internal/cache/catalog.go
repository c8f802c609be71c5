package cache

import (
	"context"
	"sync/atomic"

	"github.com/kalambet/trackmatch/internal/catalog"
	"github.com/kalambet/trackmatch/internal/matching"
)

// Searcher runs one catalog query. Implemented by catalog.Client.
type Searcher interface {
	Search(ctx context.Context, q catalog.Query) ([]matching.CandidateRecord, error)
}

// CachedCatalog consults the ResultCache before forwarding a query to the
// wrapped Searcher, and stores successful results.
type CachedCatalog struct {
	next  Searcher
	cache *ResultCache

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCachedCatalog(next Searcher, cache *ResultCache) *CachedCatalog {
	return &CachedCatalog{next: next, cache: cache}
}

func (c *CachedCatalog) Search(ctx context.Context, q catalog.Query) ([]matching.CandidateRecord, error) {
	params := q.Params()

	cached, ok, err := c.cache.Get(ctx, params)
	if err != nil {
		return nil, err
	}
	if ok {
		c.hits.Add(1)
		return cached, nil
	}
	c.misses.Add(1)

	fresh, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, params, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Stats returns the number of cache hits and misses served so far.
func (c *CachedCatalog) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
