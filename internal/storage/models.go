package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Match statuses stored on a track row.
const (
	StatusUnmatched = "unmatched"
	StatusSuggested = "suggested"
	StatusMatched   = "matched"
	StatusNoMatch   = "no_match"
	StatusError     = "error"
)

// Track is one library entry together with its reconciliation state.
type Track struct {
	ID              string     `json:"id"`
	Artist          string     `json:"artist"`
	Title           string     `json:"title"`
	Album           string     `json:"album"`
	AlbumArtist     string     `json:"album_artist,omitempty"`
	CatalogID       string     `json:"catalog_id,omitempty"`
	MatchSimilarity int        `json:"match_similarity"`
	MatchStatus     string     `json:"match_status"`
	CandidateJSON   string     `json:"candidate,omitempty"` // best ScoredCandidate as JSON
	MatchedAt       *time.Time `json:"matched_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Resolved reports whether the track carries a confirmed catalog identifier.
func (t Track) Resolved() bool {
	return t.CatalogID != ""
}

// TrackFilter narrows ListTracks. Zero values mean no filter.
type TrackFilter struct {
	Status     string
	Unresolved bool // only tracks without a catalog id
	Limit      int
	Offset     int
}

// MatchResult is the outcome written back to a track by SaveMatch.
type MatchResult struct {
	CatalogID     string
	Similarity    int
	Status        string
	CandidateJSON string
}

// CacheEntry is one stored catalog search result.
type CacheEntry struct {
	Key       string
	Payload   string // JSON array of candidates
	CreatedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
