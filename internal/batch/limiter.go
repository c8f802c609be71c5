package batch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter admits units of work. Admit blocks until fn may run, runs it and
// returns its error, or returns an admission error without running fn.
type Limiter interface {
	Admit(ctx context.Context, fn func(context.Context) error) error
}

// LimiterConfig bounds how work reaches the catalog.
type LimiterConfig struct {
	MaxConcurrent   int           // in-flight bound; <= 0 means unbounded
	MinTime         time.Duration // minimum spacing between starts; <= 0 disables
	Reservoir       int           // starts allowed per refresh interval; <= 0 disables
	RefreshInterval time.Duration // reservoir is reset to Reservoir this often
}

// DefaultLimiterConfig keeps well within the public catalog's rate limits.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxConcurrent:   3,
		MinTime:         100 * time.Millisecond,
		Reservoir:       30,
		RefreshInterval: 10 * time.Second,
	}
}

// RateLimiter combines an in-flight bound, a minimum start spacing and a
// periodically refilled reservoir of start permits.
type RateLimiter struct {
	sem     *semaphore.Weighted
	spacing *rate.Limiter

	mu         sync.Mutex
	capacity   int
	remaining  int
	interval   time.Duration
	nextRefill time.Time
}

// NewLimiter creates a RateLimiter from cfg.
func NewLimiter(cfg LimiterConfig) *RateLimiter {
	l := &RateLimiter{}
	if cfg.MaxConcurrent > 0 {
		l.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if cfg.MinTime > 0 {
		l.spacing = rate.NewLimiter(rate.Every(cfg.MinTime), 1)
	}
	if cfg.Reservoir > 0 && cfg.RefreshInterval > 0 {
		l.capacity = cfg.Reservoir
		l.remaining = cfg.Reservoir
		l.interval = cfg.RefreshInterval
		l.nextRefill = time.Now().Add(cfg.RefreshInterval)
	}
	return l
}

func (l *RateLimiter) Admit(ctx context.Context, fn func(context.Context) error) error {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer l.sem.Release(1)
	}
	if err := l.takePermit(ctx); err != nil {
		return err
	}
	if l.spacing != nil {
		if err := l.spacing.Wait(ctx); err != nil {
			return err
		}
	}
	return fn(ctx)
}

// Remaining returns the permits left in the current reservoir window, or -1
// when no reservoir is configured.
func (l *RateLimiter) Remaining() int {
	if l.capacity == 0 {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(time.Now())
	return l.remaining
}

func (l *RateLimiter) takePermit(ctx context.Context) error {
	if l.capacity == 0 {
		return nil
	}
	for {
		l.mu.Lock()
		now := time.Now()
		l.refill(now)
		if l.remaining > 0 {
			l.remaining--
			l.mu.Unlock()
			return nil
		}
		wait := l.nextRefill.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill resets the reservoir once per elapsed interval. Caller holds mu.
func (l *RateLimiter) refill(now time.Time) {
	if now.Before(l.nextRefill) {
		return
	}
	for !now.Before(l.nextRefill) {
		l.nextRefill = l.nextRefill.Add(l.interval)
	}
	l.remaining = l.capacity
}

type unlimited struct{}

func (unlimited) Admit(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// Unlimited runs every unit of work immediately.
var Unlimited Limiter = unlimited{}

var (
	defaultMu      sync.Mutex
	defaultLimiter *RateLimiter
)

// DefaultLimiter returns the process-wide limiter, creating it with
// DefaultLimiterConfig on first use.
func DefaultLimiter() *RateLimiter {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLimiter == nil {
		defaultLimiter = NewLimiter(DefaultLimiterConfig())
	}
	return defaultLimiter
}

// ResetDefaultLimiter discards the process-wide limiter so the next
// DefaultLimiter call starts with a fresh reservoir.
func ResetDefaultLimiter() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLimiter = nil
}
