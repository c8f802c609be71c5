package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/trackmatch/internal/storage"
	"github.com/kalambet/trackmatch/internal/worker"
)

const maxImportBodySize = 10 << 20 // 10MB

var (
	errDuplicateTrack = errors.New("track already exists")
	errInvalidTrack   = errors.New("invalid track")
)

// TrackInput is one library entry submitted for import.
type TrackInput struct {
	ID          string `json:"id,omitempty"`
	Artist      string `json:"artist"`
	Title       string `json:"title"`
	Album       string `json:"album"`
	AlbumArtist string `json:"album_artist,omitempty"`
}

// ImportResponse lists the stored track ids and, when matching was
// requested, the queued job ids in the same order.
type ImportResponse struct {
	IDs  []string `json:"ids"`
	Jobs []string `json:"jobs,omitempty"`
}

// importTracks validates and stores inputs. When match is set a match_track
// job is queued for every stored track that has a title.
func importTracks(ctx context.Context, store *storage.Store, inputs []TrackInput, match bool) (ImportResponse, error) {
	for i, in := range inputs {
		if strings.TrimSpace(in.Artist) == "" && strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Album) == "" {
			return ImportResponse{}, fmt.Errorf("%w %d: artist, title or album is required", errInvalidTrack, i)
		}
	}

	resp := ImportResponse{IDs: make([]string, 0, len(inputs))}
	for _, in := range inputs {
		id := in.ID
		if id == "" {
			id = uuid.New().String()
		} else if _, err := store.GetTrack(ctx, id); err == nil {
			return resp, fmt.Errorf("%w: %s", errDuplicateTrack, id)
		}

		t := storage.Track{
			ID:          id,
			Artist:      strings.TrimSpace(in.Artist),
			Title:       strings.TrimSpace(in.Title),
			Album:       strings.TrimSpace(in.Album),
			AlbumArtist: strings.TrimSpace(in.AlbumArtist),
		}
		if err := store.SaveTrack(ctx, t); err != nil {
			return resp, err
		}
		resp.IDs = append(resp.IDs, id)

		if match && t.Title != "" {
			jobID, err := worker.EnqueueMatchTrack(ctx, store, id)
			if err != nil {
				return resp, fmt.Errorf("queueing match for %s: %w", id, err)
			}
			resp.Jobs = append(resp.Jobs, jobID)
		}
	}
	return resp, nil
}

// decodeTrackInputs accepts either a single object or an array of objects.
func decodeTrackInputs(body []byte) ([]TrackInput, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var many []TrackInput
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, err
		}
		if len(many) == 0 {
			return nil, errors.New("no tracks given")
		}
		return many, nil
	}
	var one TrackInput
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []TrackInput{one}, nil
}

func handleImportTracks(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading body: %v", err)
			return
		}
		inputs, err := decodeTrackInputs(body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		resp, err := importTracks(r.Context(), deps.Store, inputs, parseBoolParam(r, "match"))
		switch {
		case errors.Is(err, errDuplicateTrack):
			httpError(w, http.StatusConflict, "invalid_request_error", "%v", err)
			return
		case errors.Is(err, errInvalidTrack):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "import failed after %d tracks: %v", len(resp.IDs), err)
			return
		}
		deps.Logger.Info("tracks imported", "count", len(resp.IDs), "queued", len(resp.Jobs))
		writeJSON(w, http.StatusCreated, resp)
	}
}

func handleListTracks(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := storage.TrackFilter{
			Status:     r.URL.Query().Get("status"),
			Unresolved: parseBoolParam(r, "unresolved"),
			Limit:      parseIntParam(r, "limit", 50, 500),
			Offset:     parseIntParam(r, "offset", 0, 0),
		}
		switch f.Status {
		case "", storage.StatusUnmatched, storage.StatusSuggested, storage.StatusMatched,
			storage.StatusNoMatch, storage.StatusError:
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", f.Status)
			return
		}

		tracks, err := deps.Store.ListTracks(r.Context(), f)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tracks: %v", err)
			return
		}
		if tracks == nil {
			tracks = []storage.Track{}
		}
		writeJSON(w, http.StatusOK, tracks)
	}
}

func handleGetTrack(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := deps.Store.GetTrack(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "track not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get track: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func handleDeleteTrack(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteTrack(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "track not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete track: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleGetJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Store.GetJob(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         job.ID,
			"type":       job.Type,
			"status":     job.Status,
			"attempts":   job.Attempts,
			"last_error": job.LastError,
		})
	}
}
