package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestLimiter_MinTimeSpacing(t *testing.T) {
	l := NewLimiter(LimiterConfig{MinTime: 20 * time.Millisecond})

	var mu sync.Mutex
	var starts []time.Time
	for range 4 {
		err := l.Admit(context.Background(), func(context.Context) error {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	require.Len(t, starts, 4)
	total := starts[3].Sub(starts[0])
	assert.GreaterOrEqual(t, total, 55*time.Millisecond)
}

func TestLimiter_ReservoirBlocksUntilRefresh(t *testing.T) {
	l := NewLimiter(LimiterConfig{Reservoir: 2, RefreshInterval: 50 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Admit(ctx, noop))
	require.NoError(t, l.Admit(ctx, noop))
	assert.Equal(t, 0, l.Remaining())

	require.NoError(t, l.Admit(ctx, noop))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, 1, l.Remaining())
}

func TestLimiter_ReservoirWaitHonoursContext(t *testing.T) {
	l := NewLimiter(LimiterConfig{Reservoir: 1, RefreshInterval: time.Hour})
	require.NoError(t, l.Admit(context.Background(), noop))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := l.Admit(ctx, func(context.Context) error { ran = true; return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
}

func TestLimiter_ReturnsWorkError(t *testing.T) {
	l := NewLimiter(DefaultLimiterConfig())
	want := errors.New("bad")
	assert.ErrorIs(t, l.Admit(context.Background(), func(context.Context) error { return want }), want)
}

func TestLimiter_NoReservoir(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxConcurrent: 1})
	assert.Equal(t, -1, l.Remaining())
}

func TestDefaultLimiter_LazyAndResettable(t *testing.T) {
	ResetDefaultLimiter()
	t.Cleanup(ResetDefaultLimiter)

	a := DefaultLimiter()
	b := DefaultLimiter()
	assert.Same(t, a, b)
	assert.Equal(t, 30, a.Remaining())

	require.NoError(t, a.Admit(context.Background(), noop))
	assert.Equal(t, 29, a.Remaining())

	ResetDefaultLimiter()
	c := DefaultLimiter()
	assert.NotSame(t, a, c)
	assert.Equal(t, 30, c.Remaining())
}

func TestUnlimited(t *testing.T) {
	calls := 0
	for range 100 {
		require.NoError(t, Unlimited.Admit(context.Background(), func(context.Context) error { calls++; return nil }))
	}
	assert.Equal(t, 100, calls)
}
