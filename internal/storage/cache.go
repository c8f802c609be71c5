package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Cache timestamps are stored as unix milliseconds so age comparisons stay
// numeric.

func (s *Store) GetCacheEntry(ctx context.Context, key string) (CacheEntry, error) {
	var e CacheEntry
	var createdMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT cache_key, payload, created_at FROM search_cache WHERE cache_key = ?`, key,
	).Scan(&e.Key, &e.Payload, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return CacheEntry{}, err
	}
	e.CreatedAt = time.UnixMilli(createdMs).UTC()
	return e, nil
}

// PutCacheEntry inserts or replaces the entry for e.Key.
func (s *Store) PutCacheEntry(ctx context.Context, e CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_cache (cache_key, payload, created_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		e.Key, e.Payload, e.CreatedAt.UnixMilli(),
	)
	return err
}

// DeleteCacheEntry removes one entry. Deleting a missing key is not an error.
func (s *Store) DeleteCacheEntry(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE cache_key = ?`, key)
	return err
}

// DeleteCacheBefore removes entries created strictly before cutoff and
// returns how many were deleted.
func (s *Store) DeleteCacheBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) PurgeCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountCacheEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_cache`).Scan(&n)
	return n, err
}
