// Package reconcile matches library tracks against the music catalog and
// records the outcome on each track.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/trackmatch/internal/batch"
	"github.com/kalambet/trackmatch/internal/cache"
	"github.com/kalambet/trackmatch/internal/cleanup"
	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/search"
	"github.com/kalambet/trackmatch/internal/storage"
)

// DefaultAutoAccept is the similarity at or above which a best candidate is
// stored as a confirmed match.
const DefaultAutoAccept = 90

// ErrNoSuggestion is returned by Confirm when no catalog id was given and
// the track has no stored candidate.
var ErrNoSuggestion = errors.New("track has no suggested candidate")

// Store is the track persistence the service needs. Implemented by storage.Store.
type Store interface {
	GetTrack(ctx context.Context, id string) (storage.Track, error)
	GetTracks(ctx context.Context, ids []string) ([]storage.Track, error)
	ListTracks(ctx context.Context, f storage.TrackFilter) ([]storage.Track, error)
	SaveMatch(ctx context.Context, id string, m storage.MatchResult) error
	ClearMatch(ctx context.Context, id, status string) error
	SetMatchStatus(ctx context.Context, id, status string) error
}

// Suggester proposes corrected metadata. Implemented by cleanup.Assistant.
type Suggester interface {
	Suggest(ctx context.Context, local matching.LocalRecord) (cleanup.Suggestion, bool)
}

// Deps are the collaborators of a Service. Catalog is required; the rest
// are optional.
type Deps struct {
	Store   Store
	Catalog search.Searcher
	Cache   *cache.ResultCache
	Limiter batch.Limiter
	Cleanup Suggester
	Logger  *slog.Logger
}

// Options tune matching.
type Options struct {
	AutoAccept int
	Search     search.Options
}

// Outcome is the result of matching one track.
type Outcome struct {
	TrackID    string                     `json:"track_id"`
	Status     string                     `json:"status"`
	Similarity int                        `json:"similarity"`
	Best       *matching.ScoredCandidate  `json:"best,omitempty"`
	Ranked     []matching.ScoredCandidate `json:"ranked,omitempty"`
	State      search.State               `json:"state"`
	RoundTrips int                        `json:"round_trips"`
}

// Service ties the search strategy, cache, orchestrator and store together.
type Service struct {
	store      Store
	searcher   search.Searcher
	cached     *cache.CachedCatalog
	strategy   *search.Strategy
	limiter    batch.Limiter
	cleanup    Suggester
	logger     *slog.Logger
	autoAccept int
	searchOpts search.Options
}

// New builds a Service. When deps.Cache is set, every catalog query goes
// through it.
func New(deps Deps, opts Options) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AutoAccept <= 0 {
		opts.AutoAccept = DefaultAutoAccept
	}

	s := &Service{
		store:      deps.Store,
		searcher:   deps.Catalog,
		limiter:    deps.Limiter,
		cleanup:    deps.Cleanup,
		logger:     logger,
		autoAccept: opts.AutoAccept,
		searchOpts: opts.Search,
	}
	if deps.Cache != nil {
		s.cached = cache.NewCachedCatalog(deps.Catalog, deps.Cache)
		s.searcher = s.cached
	}
	s.strategy = search.New(s.searcher, opts.Search)
	s.strategy.SetLogger(logger)
	return s
}

// CacheStats returns cache hits and misses, or zeros when no cache is configured.
func (s *Service) CacheStats() (hits, misses int64) {
	if s.cached == nil {
		return 0, 0
	}
	return s.cached.Stats()
}

// Search looks up local without persisting anything.
func (s *Service) Search(ctx context.Context, local matching.LocalRecord) (search.Result, error) {
	return s.strategy.FindAndRank(ctx, local)
}

// RecordFor builds the LocalRecord for a track. The album artist stands in
// for a missing track artist.
func RecordFor(t storage.Track) matching.LocalRecord {
	artist := strings.TrimSpace(t.Artist)
	if artist == "" {
		artist = strings.TrimSpace(t.AlbumArtist)
	}
	return matching.LocalRecord{Artist: artist, Title: t.Title, Album: t.Album}
}

// MatchTrack searches the catalog for one track and stores the outcome. The
// search waits for the service's limiter like every batch item does.
func (s *Service) MatchTrack(ctx context.Context, id string) (Outcome, error) {
	t, err := s.store.GetTrack(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading track %s: %w", id, err)
	}
	var out Outcome
	err = s.admit(ctx, func(ctx context.Context) error {
		out, err = s.matchTrack(ctx, t)
		return err
	})
	return out, err
}

func (s *Service) admit(ctx context.Context, fn func(context.Context) error) error {
	limiter := s.limiter
	if limiter == nil {
		limiter = batch.DefaultLimiter()
	}
	return limiter.Admit(ctx, fn)
}

func (s *Service) matchTrack(ctx context.Context, t storage.Track) (Outcome, error) {
	local := RecordFor(t)
	if !local.HasTitle() {
		return Outcome{}, search.ErrMissingTitle
	}

	res, err := s.strategy.FindAndRank(ctx, local)
	if err != nil {
		// A resolved track keeps its match; others are flagged without
		// losing a stored suggestion.
		if t.CatalogID == "" {
			if saveErr := s.store.SetMatchStatus(ctx, t.ID, storage.StatusError); saveErr != nil {
				s.logger.Error("recording match error", "track_id", t.ID, "error", saveErr)
			}
		}
		return Outcome{}, fmt.Errorf("matching track %s: %w", t.ID, err)
	}
	return s.record(ctx, t, res)
}

// record classifies a search result and writes it to the track. A track that
// already has a catalog id is not overwritten; the outcome reports the new
// candidates alongside the stored status.
func (s *Service) record(ctx context.Context, t storage.Track, res search.Result) (Outcome, error) {
	id := t.ID
	out := Outcome{
		TrackID:    id,
		Status:     storage.StatusNoMatch,
		Best:       res.Best,
		Ranked:     res.Ranked,
		State:      res.State,
		RoundTrips: res.RoundTrips,
	}

	m := storage.MatchResult{Status: storage.StatusNoMatch}
	if res.Best != nil {
		payload, err := json.Marshal(res.Best)
		if err != nil {
			return Outcome{}, fmt.Errorf("encoding candidate: %w", err)
		}
		m.CandidateJSON = string(payload)
		m.Similarity = res.Best.Similarity
		out.Similarity = res.Best.Similarity

		if res.Best.Similarity >= s.autoAccept {
			m.Status = storage.StatusMatched
			m.CatalogID = res.Best.Candidate.ID
		} else {
			m.Status = storage.StatusSuggested
		}
		out.Status = m.Status
	}

	if t.CatalogID != "" {
		s.logger.Info("track already resolved, keeping stored match",
			"track_id", id, "catalog_id", t.CatalogID, "new_status", out.Status, "similarity", out.Similarity)
		out.Status = t.MatchStatus
		return out, nil
	}
	if err := s.store.SaveMatch(ctx, id, m); err != nil {
		return Outcome{}, fmt.Errorf("saving match for %s: %w", id, err)
	}
	s.logger.Debug("track matched", "track_id", id, "status", out.Status, "similarity", out.Similarity, "state", res.State)
	return out, nil
}

// MatchBatch matches the given tracks, or every unresolved track when ids
// is empty. Tracks without a title are skipped.
func (s *Service) MatchBatch(ctx context.Context, ids []string) (batch.Summary, error) {
	var tracks []storage.Track
	var err error
	if len(ids) == 0 {
		tracks, err = s.store.ListTracks(ctx, storage.TrackFilter{Unresolved: true})
	} else {
		tracks, err = s.store.GetTracks(ctx, ids)
	}
	if err != nil {
		return batch.Summary{}, fmt.Errorf("loading tracks: %w", err)
	}

	eligible := tracks[:0]
	skipped := 0
	for _, t := range tracks {
		if RecordFor(t).HasTitle() {
			eligible = append(eligible, t)
		} else {
			skipped++
		}
	}
	if skipped > 0 {
		s.logger.Info("skipping tracks without a title", "count", skipped)
	}

	summary := batch.Run(ctx, eligible, func(ctx context.Context, t storage.Track) error {
		_, err := s.matchTrack(ctx, t)
		return err
	}, batch.Options[storage.Track]{
		Limiter: s.limiter,
		Logger:  s.logger,
		OnError: func(t storage.Track, err error) {
			s.logger.Warn("track match failed", "track_id", t.ID, "error", err)
		},
		OnComplete: func(sum batch.Summary) {
			s.logger.Info("batch complete", "total", sum.Total, "succeeded", sum.Succeeded, "failed", sum.Failed)
		},
	})
	return summary, nil
}

// Confirm accepts catalogID as the track's match. An empty catalogID
// accepts the stored suggestion.
func (s *Service) Confirm(ctx context.Context, id, catalogID string) error {
	t, err := s.store.GetTrack(ctx, id)
	if err != nil {
		return fmt.Errorf("loading track %s: %w", id, err)
	}

	m := storage.MatchResult{
		CatalogID:     catalogID,
		Similarity:    t.MatchSimilarity,
		Status:        storage.StatusMatched,
		CandidateJSON: t.CandidateJSON,
	}
	if sc, ok := storedCandidate(t); ok {
		if catalogID == "" {
			m.CatalogID = sc.Candidate.ID
		} else if catalogID != sc.Candidate.ID {
			m.CandidateJSON = ""
			m.Similarity = 0
		}
	}
	if m.CatalogID == "" {
		return ErrNoSuggestion
	}
	return s.store.SaveMatch(ctx, id, m)
}

// Reject discards the stored candidate and marks the track as having no match.
func (s *Service) Reject(ctx context.Context, id string) error {
	return s.store.ClearMatch(ctx, id, storage.StatusNoMatch)
}

// Suggest asks the cleanup assistant for corrected metadata for a track.
// ok is false when no assistant is configured or it had nothing to offer.
func (s *Service) Suggest(ctx context.Context, id string) (cleanup.Suggestion, bool, error) {
	t, err := s.store.GetTrack(ctx, id)
	if err != nil {
		return cleanup.Suggestion{}, false, fmt.Errorf("loading track %s: %w", id, err)
	}
	if s.cleanup == nil {
		return cleanup.Suggestion{}, false, nil
	}
	sugg, ok := s.cleanup.Suggest(ctx, RecordFor(t))
	return sugg, ok, nil
}

func storedCandidate(t storage.Track) (matching.ScoredCandidate, bool) {
	if t.CandidateJSON == "" {
		return matching.ScoredCandidate{}, false
	}
	var sc matching.ScoredCandidate
	if err := json.Unmarshal([]byte(t.CandidateJSON), &sc); err != nil || sc.Candidate.ID == "" {
		return matching.ScoredCandidate{}, false
	}
	return sc, true
}
