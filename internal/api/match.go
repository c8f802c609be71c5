package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/trackmatch/internal/cleanup"
	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/reconcile"
	"github.com/kalambet/trackmatch/internal/search"
	"github.com/kalambet/trackmatch/internal/worker"
)

func handleMatchTrack(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := deps.Service.MatchTrack(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			matchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ConfirmRequest names the catalog id to accept. An empty id accepts the
// stored suggestion.
type ConfirmRequest struct {
	CatalogID string `json:"catalog_id"`
}

func handleConfirm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConfirmRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		if err := deps.Service.Confirm(r.Context(), id, strings.TrimSpace(req.CatalogID)); err != nil {
			matchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "matched"})
	}
}

func handleReject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Service.Reject(r.Context(), chi.URLParam(r, "id")); err != nil {
			matchError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "no_match"})
	}
}

// SuggestResponse is the body of POST /tracks/{id}/suggest. Outcome is set
// only when the suggestion was applied.
type SuggestResponse struct {
	Available  bool                `json:"available"`
	Suggestion *cleanup.Suggestion `json:"suggestion,omitempty"`
	Outcome    *reconcile.Outcome  `json:"outcome,omitempty"`
}

func handleSuggest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sugg, ok, err := deps.Service.Suggest(r.Context(), id)
		if err != nil {
			matchError(w, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, SuggestResponse{})
			return
		}

		resp := SuggestResponse{Available: true, Suggestion: &sugg}
		if parseBoolParam(r, "apply") {
			out, err := deps.Service.ApplySuggestion(r.Context(), id, sugg)
			if err != nil {
				matchError(w, err)
				return
			}
			resp.Outcome = &out
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SearchResponse is the body of POST /match.
type SearchResponse struct {
	State      search.State               `json:"state"`
	RoundTrips int                        `json:"round_trips"`
	Best       *matching.ScoredCandidate  `json:"best,omitempty"`
	Ranked     []matching.ScoredCandidate `json:"ranked"`
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var local matching.LocalRecord
		if !decodeBody(w, r, &local) {
			return
		}
		res, err := deps.Service.Search(r.Context(), local)
		if err != nil {
			matchError(w, err)
			return
		}
		ranked := res.Ranked
		if ranked == nil {
			ranked = []matching.ScoredCandidate{}
		}
		writeJSON(w, http.StatusOK, SearchResponse{
			State:      res.State,
			RoundTrips: res.RoundTrips,
			Best:       res.Best,
			Ranked:     ranked,
		})
	}
}

// BatchRequest selects the tracks for a batch. No ids means every
// unresolved track.
type BatchRequest struct {
	TrackIDs []string `json:"track_ids"`
}

func handleBatch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		jobID, err := worker.EnqueueMatchBatch(r.Context(), deps.Store, req.TrackIDs)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue batch: %v", err)
			return
		}
		deps.Logger.Info("batch queued", "job_id", jobID, "tracks", len(req.TrackIDs))
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	}
}

func handlePurgeCache(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Cache == nil {
			httpError(w, http.StatusNotFound, "not_found", "result cache is disabled")
			return
		}
		purge := deps.Cache.Purge
		if parseBoolParam(r, "expired_only") {
			purge = deps.Cache.PurgeExpired
		}
		n, err := purge(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to purge cache: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}
