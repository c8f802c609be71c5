package reconcile

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/trackmatch/internal/catalog"
	"github.com/kalambet/trackmatch/internal/cleanup"
	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/search"
)

const maxAlternativeFanOut = 3

// ApplySuggestion re-runs the search for a track using the corrected tags
// in sugg. When the corrected search does not reach the auto-accept level,
// the suggestion's alternative queries are searched concurrently and their
// hits ranked together with the corrected results. The track's own tags are
// left unchanged; only its match state is updated.
func (s *Service) ApplySuggestion(ctx context.Context, id string, sugg cleanup.Suggestion) (Outcome, error) {
	t, err := s.store.GetTrack(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading track %s: %w", id, err)
	}

	corrected := sugg.Record()
	var res search.Result
	err = s.admit(ctx, func(ctx context.Context) error {
		res, err = s.strategy.FindAndRank(ctx, corrected)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("searching corrected tags: %w", err)
	}

	if (res.Best == nil || res.Best.Similarity < s.autoAccept) && len(sugg.AlternativeQueries) > 0 {
		extra, trips, err := s.searchAlternatives(ctx, sugg.AlternativeQueries)
		if err != nil {
			s.logger.Warn("alternative queries failed", "track_id", id, "error", err)
		} else {
			res = mergeResults(corrected, res, extra)
			res.RoundTrips += trips
		}
	}
	return s.record(ctx, t, res)
}

func (s *Service) searchAlternatives(ctx context.Context, queries []string) ([]matching.CandidateRecord, int, error) {
	if len(queries) > maxAlternativeFanOut {
		queries = queries[:maxAlternativeFanOut]
	}

	results := make([][]matching.CandidateRecord, len(queries))
	g, gCtx := errgroup.WithContext(ctx)
	for i, text := range queries {
		g.Go(func() error {
			return s.admit(gCtx, func(ctx context.Context) error {
				cands, err := s.searcher.Search(ctx, catalog.Query{
					Text:   text,
					Types:  s.searchOpts.Types,
					Market: s.searchOpts.Market,
					Limit:  s.searchOpts.Limit,
				})
				if err != nil {
					return fmt.Errorf("alternative query %q: %w", text, err)
				}
				results[i] = cands
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var out []matching.CandidateRecord
	for _, r := range results {
		out = append(out, r...)
	}
	return out, len(queries), nil
}

// mergeResults ranks the corrected-search candidates together with extra,
// dropping duplicate catalog ids.
func mergeResults(local matching.LocalRecord, res search.Result, extra []matching.CandidateRecord) search.Result {
	seen := make(map[string]bool, len(res.Candidates)+len(extra))
	var all []matching.CandidateRecord
	for _, c := range append(append([]matching.CandidateRecord{}, res.Candidates...), extra...) {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		all = append(all, c)
	}

	res.Candidates = all
	res.Ranked = matching.Rank(local, all)
	res.Best = nil
	if best, ok := matching.Best(res.Ranked); ok {
		res.Best = &best
	}
	return res
}
