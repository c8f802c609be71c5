package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const trackColumns = `id, artist, title, album, album_artist, catalog_id, match_similarity,
	match_status, candidate_json, matched_at, created_at, updated_at`

// SaveTrack inserts a new track. An empty MatchStatus is stored as unmatched.
func (s *Store) SaveTrack(ctx context.Context, t Track) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.MatchStatus == "" {
		t.MatchStatus = StatusUnmatched
	}
	var matchedAt sql.NullString
	if t.MatchedAt != nil {
		matchedAt = sql.NullString{String: formatTime(*t.MatchedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracks (`+trackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Artist, t.Title, t.Album, t.AlbumArtist, t.CatalogID, t.MatchSimilarity,
		t.MatchStatus, t.CandidateJSON, matchedAt, formatTime(t.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting track %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) GetTrack(ctx context.Context, id string) (Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Track{}, ErrNotFound
	}
	return t, err
}

// ListTracks returns tracks ordered by creation time, oldest first.
func (s *Store) ListTracks(ctx context.Context, f TrackFilter) ([]Track, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "match_status = ?")
		args = append(args, f.Status)
	}
	if f.Unresolved {
		where = append(where, "catalog_id = ''")
	}

	query := `SELECT ` + trackColumns + ` FROM tracks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// GetTracks returns the tracks with the given ids, in the order requested.
// Unknown ids are skipped.
func (s *Store) GetTracks(ctx context.Context, ids []string) ([]Track, error) {
	out := make([]Track, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTrack(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) DeleteTrack(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// SaveMatch records the outcome of a reconciliation attempt. matched_at is
// set only when a catalog id is stored.
func (s *Store) SaveMatch(ctx context.Context, id string, m MatchResult) error {
	now := time.Now().UTC()
	var matchedAt sql.NullString
	if m.CatalogID != "" {
		matchedAt = sql.NullString{String: formatTime(now), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tracks SET catalog_id = ?, match_similarity = ?, match_status = ?, candidate_json = ?,
			matched_at = ?, updated_at = ?
		WHERE id = ?`,
		m.CatalogID, m.Similarity, m.Status, m.CandidateJSON, matchedAt, formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("saving match for %s: %w", id, err)
	}
	return expectOneRow(res)
}

// ClearMatch drops any stored candidate and catalog id and sets status.
func (s *Store) ClearMatch(ctx context.Context, id, status string) error {
	return s.SaveMatch(ctx, id, MatchResult{Status: status})
}

// SetMatchStatus changes only the status, keeping any stored candidate and
// catalog id.
func (s *Store) SetMatchStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tracks SET match_status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("setting status for %s: %w", id, err)
	}
	return expectOneRow(res)
}

// CountByStatus returns the number of tracks per match status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT match_status, COUNT(*) FROM tracks GROUP BY match_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(r rowScanner) (Track, error) {
	var t Track
	var matchedAt sql.NullString
	var createdAt, updatedAt string
	if err := r.Scan(&t.ID, &t.Artist, &t.Title, &t.Album, &t.AlbumArtist, &t.CatalogID, &t.MatchSimilarity,
		&t.MatchStatus, &t.CandidateJSON, &matchedAt, &createdAt, &updatedAt); err != nil {
		return Track{}, err
	}
	var err error
	if t.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Track{}, err
	}
	if t.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Track{}, err
	}
	if matchedAt.Valid {
		m, err := parseTime("matched_at", matchedAt.String)
		if err != nil {
			return Track{}, err
		}
		t.MatchedAt = &m
	}
	return t, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
