package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/storage"
)

// DefaultTTL is how long a cached search result stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// Store is the persistence the cache needs. Implemented by storage.Store.
type Store interface {
	GetCacheEntry(ctx context.Context, key string) (storage.CacheEntry, error)
	PutCacheEntry(ctx context.Context, e storage.CacheEntry) error
	DeleteCacheEntry(ctx context.Context, key string) error
	DeleteCacheBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeCache(ctx context.Context) (int64, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ResultCache stores catalog search results keyed by their normalized
// query parameters. Expired or unreadable entries are deleted on read and
// reported as misses.
type ResultCache struct {
	store  Store
	clock  Clock
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a ResultCache. A non-positive ttl selects DefaultTTL.
func New(store Store, ttl time.Duration) *ResultCache {
	return NewWithClock(store, realClock{}, ttl)
}

// NewWithClock creates a ResultCache with a custom clock (for testing).
func NewWithClock(store Store, clock Clock, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{
		store:  store,
		clock:  clock,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// SetLogger replaces the logger used for corruption warnings.
func (c *ResultCache) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// TTL returns the configured entry lifetime.
func (c *ResultCache) TTL() time.Duration { return c.ttl }

// Key builds the cache key for a set of query parameters. Values are
// lower-cased and trimmed, empty values dropped, and the rest query-encoded
// in name order, so separators inside a value cannot collide with another
// parameter set. The key is the same for any two parameter sets that differ
// only in case, surrounding whitespace, ordering or empty fields.
func Key(params map[string]string) string {
	vals := url.Values{}
	for name, v := range params {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		vals.Set(name, v)
	}
	return vals.Encode()
}

// Get returns the cached candidates for params. ok is false on a miss.
// Only errors from the store itself are returned.
func (c *ResultCache) Get(ctx context.Context, params map[string]string) (candidates []matching.CandidateRecord, ok bool, err error) {
	key := Key(params)

	entry, err := c.store.GetCacheEntry(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	if c.clock.Now().Sub(entry.CreatedAt) > c.ttl {
		if err := c.store.DeleteCacheEntry(ctx, key); err != nil {
			return nil, false, fmt.Errorf("deleting expired cache entry: %w", err)
		}
		return nil, false, nil
	}

	if err := json.Unmarshal([]byte(entry.Payload), &candidates); err != nil {
		c.logger.Warn("dropping unreadable cache entry", "key", key, "error", err)
		if err := c.store.DeleteCacheEntry(ctx, key); err != nil {
			return nil, false, fmt.Errorf("deleting corrupt cache entry: %w", err)
		}
		return nil, false, nil
	}
	if candidates == nil {
		candidates = []matching.CandidateRecord{}
	}
	return candidates, true, nil
}

// Put stores candidates under params, replacing any existing entry.
func (c *ResultCache) Put(ctx context.Context, params map[string]string, candidates []matching.CandidateRecord) error {
	if candidates == nil {
		candidates = []matching.CandidateRecord{}
	}
	payload, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("encoding cache payload: %w", err)
	}
	entry := storage.CacheEntry{
		Key:       Key(params),
		Payload:   string(payload),
		CreatedAt: c.clock.Now(),
	}
	if err := c.store.PutCacheEntry(ctx, entry); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Purge removes every entry and returns how many were removed.
func (c *ResultCache) Purge(ctx context.Context) (int64, error) {
	return c.store.PurgeCache(ctx)
}

// PurgeExpired removes entries older than the TTL.
func (c *ResultCache) PurgeExpired(ctx context.Context) (int64, error) {
	return c.store.DeleteCacheBefore(ctx, c.clock.Now().Add(-c.ttl))
}
