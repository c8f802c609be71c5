// Package batch runs per-record work over a set of library records through
// a shared Limiter, isolating failures to the record that caused them.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Resolvable is a record that may already carry a confirmed catalog id.
type Resolvable interface {
	Resolved() bool
}

// Summary counts the outcome of one Run.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Options configures Run. A nil Limiter selects DefaultLimiter.
type Options[T any] struct {
	Limiter Limiter

	// OnError is called once per failed record. Calls are serialized.
	OnError func(record T, err error)

	// OnComplete is called exactly once, after every record has settled.
	OnComplete func(Summary)

	Logger *slog.Logger
}

// PanicError wraps a value recovered from a panicking work function.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Run applies work to every record that is not yet resolved. Each record is
// admitted through the limiter on its own goroutine; a failure of one record
// never cancels the others. Run returns when every record has settled.
func Run[T Resolvable](ctx context.Context, records []T, work func(context.Context, T) error, opts Options[T]) Summary {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = DefaultLimiter()
	}

	eligible := make([]T, 0, len(records))
	for _, r := range records {
		if !r.Resolved() {
			eligible = append(eligible, r)
		}
	}

	summary := Summary{Total: len(eligible)}
	if len(eligible) == 0 {
		if opts.OnComplete != nil {
			opts.OnComplete(summary)
		}
		return summary
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, rec := range eligible {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Admit(ctx, func(ctx context.Context) error {
				return safeCall(ctx, work, rec)
			})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				summary.Succeeded++
				return
			}
			summary.Failed++
			logger.Warn("batch record failed", "error", err)
			if opts.OnError != nil {
				opts.OnError(rec, err)
			}
		}()
	}
	wg.Wait()

	if opts.OnComplete != nil {
		opts.OnComplete(summary)
	}
	return summary
}

func safeCall[T any](ctx context.Context, work func(context.Context, T) error, rec T) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return work(ctx, rec)
}
