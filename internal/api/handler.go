// Package api exposes the reconciliation service over HTTP and MCP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/trackmatch/internal/batch"
	"github.com/kalambet/trackmatch/internal/cleanup"
	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/reconcile"
	"github.com/kalambet/trackmatch/internal/search"
	"github.com/kalambet/trackmatch/internal/storage"
)

// Matcher is the reconciliation surface used by the handlers. Implemented by
// reconcile.Service.
type Matcher interface {
	Search(ctx context.Context, local matching.LocalRecord) (search.Result, error)
	MatchTrack(ctx context.Context, id string) (reconcile.Outcome, error)
	MatchBatch(ctx context.Context, ids []string) (batch.Summary, error)
	Confirm(ctx context.Context, id, catalogID string) error
	Reject(ctx context.Context, id string) error
	Suggest(ctx context.Context, id string) (cleanup.Suggestion, bool, error)
	ApplySuggestion(ctx context.Context, id string, sugg cleanup.Suggestion) (reconcile.Outcome, error)
	CacheStats() (hits, misses int64)
}

// CachePurger clears stored search results. Implemented by cache.ResultCache.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type AppDeps struct {
	Store   *storage.Store
	Service Matcher
	Cache   CachePurger // optional; DELETE /cache returns 404 without it
	Token   string
	Version string
	Logger  *slog.Logger
}

// NewAppHandler builds the HTTP API. Every route except /health requires
// the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token, "/health"))

	r.Get("/health", handleHealth(deps))
	r.Get("/stats", handleStats(deps))

	r.Route("/tracks", func(r chi.Router) {
		r.Post("/", handleImportTracks(deps))
		r.Get("/", handleListTracks(deps))
		r.Get("/{id}", handleGetTrack(deps))
		r.Delete("/{id}", handleDeleteTrack(deps))
		r.Post("/{id}/match", handleMatchTrack(deps))
		r.Post("/{id}/confirm", handleConfirm(deps))
		r.Post("/{id}/reject", handleReject(deps))
		r.Post("/{id}/suggest", handleSuggest(deps))
	})

	r.Post("/match", handleSearch(deps))
	r.Post("/batch", handleBatch(deps))
	r.Get("/jobs/{id}", handleGetJob(deps))
	r.Delete("/cache", handlePurgeCache(deps))

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := deps.Store.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"status": status, "version": deps.Version})
	}
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Tracks       map[string]int `json:"tracks"`
	CacheEntries int            `json:"cache_entries"`
	CacheHits    int64          `json:"cache_hits"`
	CacheMisses  int64          `json:"cache_misses"`
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Store.CountByStatus(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count tracks: %v", err)
			return
		}
		entries, err := deps.Store.CountCacheEntries(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count cache entries: %v", err)
			return
		}
		hits, misses := deps.Service.CacheStats()
		writeJSON(w, http.StatusOK, StatsResponse{
			Tracks:       counts,
			CacheEntries: entries,
			CacheHits:    hits,
			CacheMisses:  misses,
		})
	}
}
