// Package search finds catalog candidates for a local record with a precise
// query first and a relaxed query as fallback.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/trackmatch/internal/catalog"
	"github.com/kalambet/trackmatch/internal/matching"
)

// ErrMissingTitle is returned for records without a usable title. Such
// records are expected to be filtered out before searching.
var ErrMissingTitle = errors.New("record has no title")

// DefaultLimit is the number of hits requested per query.
const DefaultLimit = 20

// State is the query shape the strategy is in.
type State int

const (
	// Precise queries by artist and title.
	Precise State = iota
	// Relaxed queries by title only.
	Relaxed
)

func (s State) String() string {
	switch s {
	case Precise:
		return "precise"
	case Relaxed:
		return "relaxed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText lets State appear by name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "precise":
		*s = Precise
	case "relaxed":
		*s = Relaxed
	default:
		return fmt.Errorf("unknown search state %q", b)
	}
	return nil
}

// Searcher runs one catalog query. Implemented by catalog.Client and
// cache.CachedCatalog.
type Searcher interface {
	Search(ctx context.Context, q catalog.Query) ([]matching.CandidateRecord, error)
}

// Options are applied to every query the strategy issues.
type Options struct {
	Types  []string
	Market string
	Limit  int
}

// Strategy runs the precise-then-relaxed search for one record at a time.
// It is safe for concurrent use if the Searcher is.
type Strategy struct {
	searcher Searcher
	opts     Options
	logger   *slog.Logger
}

// New creates a Strategy. A zero Limit selects DefaultLimit.
func New(searcher Searcher, opts Options) *Strategy {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return &Strategy{searcher: searcher, opts: opts, logger: slog.Default()}
}

// SetLogger replaces the logger used for state transitions.
func (s *Strategy) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Result is the outcome of FindAndRank.
type Result struct {
	Candidates []matching.CandidateRecord `json:"candidates"`
	Ranked     []matching.ScoredCandidate `json:"ranked"`
	Best       *matching.ScoredCandidate  `json:"best,omitempty"`
	State      State                      `json:"state"`
	RoundTrips int                        `json:"round_trips"`
}

// FindBestMatches returns the candidate list for local: the precise results
// when they contain a reasonable match, otherwise the relaxed results. If the
// relaxed query fails after the precise one found something, the weak precise
// results are returned instead of the error.
func (s *Strategy) FindBestMatches(ctx context.Context, local matching.LocalRecord) ([]matching.CandidateRecord, error) {
	res, err := s.find(ctx, local)
	if err != nil {
		return nil, err
	}
	return res.Candidates, nil
}

// FindAndRank runs FindBestMatches and ranks the returned candidates.
func (s *Strategy) FindAndRank(ctx context.Context, local matching.LocalRecord) (Result, error) {
	res, err := s.find(ctx, local)
	if err != nil {
		return Result{}, err
	}
	if res.Ranked == nil {
		res.Ranked = matching.Rank(local, res.Candidates)
	}
	if best, ok := matching.Best(res.Ranked); ok {
		res.Best = &best
	}
	return res, nil
}

func (s *Strategy) find(ctx context.Context, local matching.LocalRecord) (Result, error) {
	if !local.HasTitle() {
		return Result{}, ErrMissingTitle
	}

	res := Result{State: Precise}
	if !local.HasArtist() {
		res.State = Relaxed
	}

	var precise Result
	for {
		cands, err := s.searcher.Search(ctx, s.query(res.State, local))
		res.RoundTrips++
		if err != nil && res.State == Relaxed && len(precise.Candidates) > 0 {
			// The precise hits are real, only weak; keep them.
			s.logger.Warn("relaxed search failed, keeping precise results",
				"title", local.Title, "results", len(precise.Candidates), "error", err)
			precise.RoundTrips = res.RoundTrips
			return precise, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s search: %w", res.State, err)
		}
		res.Candidates = cands

		if res.State == Relaxed {
			return res, nil
		}

		ranked := matching.Rank(local, cands)
		best := 0
		if top, ok := matching.Best(ranked); ok {
			best = top.Similarity
		}
		if len(cands) > 0 && best >= matching.PreciseAcceptThreshold {
			res.Ranked = ranked
			return res, nil
		}

		precise = Result{State: Precise, Candidates: cands, Ranked: ranked}
		s.logger.Debug("precise search below threshold, relaxing",
			"title", local.Title, "results", len(cands), "best", best)
		res.State = Relaxed
	}
}

func (s *Strategy) query(state State, local matching.LocalRecord) catalog.Query {
	q := catalog.Query{
		Types:  s.opts.Types,
		Market: s.opts.Market,
		Limit:  s.opts.Limit,
	}
	switch state {
	case Precise:
		q.Artist = strings.TrimSpace(local.Artist)
		q.Track = strings.TrimSpace(local.Title)
	case Relaxed:
		q.Text = strings.TrimSpace(local.Title)
	}
	return q
}
