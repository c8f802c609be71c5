// Package worker drains the persisted job queue of match requests.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/trackmatch/internal/batch"
	"github.com/kalambet/trackmatch/internal/reconcile"
	"github.com/kalambet/trackmatch/internal/search"
	"github.com/kalambet/trackmatch/internal/storage"
)

// Job types handled by the Worker.
const (
	JobMatchTrack = "match_track"
	JobMatchBatch = "match_batch"
)

// JobStore abstracts the job queue operations. Implemented by storage.Store.
type JobStore interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// Matcher runs the matching work. Implemented by reconcile.Service.
type Matcher interface {
	MatchTrack(ctx context.Context, id string) (reconcile.Outcome, error)
	MatchBatch(ctx context.Context, ids []string) (batch.Summary, error)
}

// Worker processes match_track and match_batch jobs.
type Worker struct {
	store   JobStore
	matcher Matcher
	poll    time.Duration
	logger  *slog.Logger
}

// New creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func New(store JobStore, matcher Matcher, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		matcher: matcher,
		poll:    pollInterval,
		logger:  slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. It reports whether a job was
// claimed, regardless of its outcome.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobMatchTrack, JobMatchBatch})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.process(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// MatchTrackPayload is the payload of a match_track job.
type MatchTrackPayload struct {
	TrackID string `json:"track_id"`
}

// MatchBatchPayload is the payload of a match_batch job. No ids means every
// unresolved track.
type MatchBatchPayload struct {
	TrackIDs []string `json:"track_ids,omitempty"`
}

func (w *Worker) process(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case JobMatchTrack:
		var p MatchTrackPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		out, err := w.matcher.MatchTrack(ctx, p.TrackID)
		if errors.Is(err, search.ErrMissingTitle) || errors.Is(err, storage.ErrNotFound) {
			// Retrying cannot help.
			w.logger.Warn("skipping track", "job_id", job.ID, "track_id", p.TrackID, "error", err)
			return nil
		}
		if err != nil {
			return err
		}
		w.logger.Info("track matched", "job_id", job.ID, "track_id", p.TrackID, "status", out.Status, "similarity", out.Similarity)
		return nil

	case JobMatchBatch:
		var p MatchBatchPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		summary, err := w.matcher.MatchBatch(ctx, p.TrackIDs)
		if err != nil {
			return err
		}
		w.logger.Info("batch job finished", "job_id", job.ID, "total", summary.Total, "succeeded", summary.Succeeded, "failed", summary.Failed)
		return nil

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// EnqueueMatchTrack queues a match_track job and returns its id.
func EnqueueMatchTrack(ctx context.Context, store JobStore, trackID string) (string, error) {
	return enqueue(ctx, store, JobMatchTrack, MatchTrackPayload{TrackID: trackID})
}

// EnqueueMatchBatch queues a match_batch job and returns its id.
func EnqueueMatchBatch(ctx context.Context, store JobStore, trackIDs []string) (string, error) {
	return enqueue(ctx, store, JobMatchBatch, MatchBatchPayload{TrackIDs: trackIDs})
}

func enqueue(ctx context.Context, store JobStore, jobType string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", jobType, err)
	}
	id := uuid.New().String()
	if err := store.EnqueueJob(ctx, storage.Job{ID: id, Type: jobType, PayloadJSON: string(b)}); err != nil {
		return "", err
	}
	return id, nil
}
