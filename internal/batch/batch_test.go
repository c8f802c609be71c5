package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	id        string
	catalogID string
}

func (r record) Resolved() bool { return r.catalogID != "" }

func records(n int) []record {
	out := make([]record, n)
	for i := range out {
		out[i] = record{id: fmt.Sprintf("r%d", i)}
	}
	return out
}

func TestRun_AllSucceed(t *testing.T) {
	var processed atomic.Int32
	var completions []Summary

	summary := Run(context.Background(), records(10), func(_ context.Context, _ record) error {
		processed.Add(1)
		return nil
	}, Options[record]{
		Limiter:    Unlimited,
		OnComplete: func(s Summary) { completions = append(completions, s) },
	})

	assert.Equal(t, Summary{Total: 10, Succeeded: 10}, summary)
	assert.Equal(t, int32(10), processed.Load())
	require.Len(t, completions, 1)
	assert.Equal(t, summary, completions[0])
}

func TestRun_SkipsResolvedRecords(t *testing.T) {
	recs := []record{{id: "a"}, {id: "b", catalogID: "c-1"}, {id: "c"}}
	var mu sync.Mutex
	var seen []string

	summary := Run(context.Background(), recs, func(_ context.Context, r record) error {
		mu.Lock()
		seen = append(seen, r.id)
		mu.Unlock()
		return nil
	}, Options[record]{Limiter: Unlimited})

	sort.Strings(seen)
	assert.Equal(t, []string{"a", "c"}, seen)
	assert.Equal(t, Summary{Total: 2, Succeeded: 2}, summary)
}

func TestRun_EmptyEligibleSet(t *testing.T) {
	var completions []Summary
	called := false

	summary := Run(context.Background(), []record{{id: "a", catalogID: "x"}}, func(context.Context, record) error {
		called = true
		return nil
	}, Options[record]{
		Limiter:    Unlimited,
		OnComplete: func(s Summary) { completions = append(completions, s) },
	})

	assert.False(t, called)
	assert.Equal(t, Summary{}, summary)
	assert.Equal(t, []Summary{{}}, completions)

	summary = Run[record](context.Background(), nil, nil, Options[record]{Limiter: Unlimited})
	assert.Equal(t, Summary{}, summary)
}

func TestRun_FailuresAreIsolated(t *testing.T) {
	boom := errors.New("catalog 500")
	recs := records(6)

	var mu sync.Mutex
	failed := map[string]error{}
	var completions int

	summary := Run(context.Background(), recs, func(_ context.Context, r record) error {
		switch r.id {
		case "r1", "r4":
			return boom
		case "r2":
			panic("unexpected nil candidate")
		}
		return nil
	}, Options[record]{
		Limiter: Unlimited,
		OnError: func(r record, err error) {
			mu.Lock()
			failed[r.id] = err
			mu.Unlock()
		},
		OnComplete: func(Summary) { completions++ },
	})

	assert.Equal(t, Summary{Total: 6, Succeeded: 3, Failed: 3}, summary)
	assert.Equal(t, 1, completions)
	require.Len(t, failed, 3)
	assert.ErrorIs(t, failed["r1"], boom)
	assert.ErrorIs(t, failed["r4"], boom)

	var pe *PanicError
	require.ErrorAs(t, failed["r2"], &pe)
	assert.Equal(t, "unexpected nil candidate", pe.Value)
}

type rejectingLimiter struct{}

func (rejectingLimiter) Admit(context.Context, func(context.Context) error) error {
	return errors.New("queue full")
}

func TestRun_AdmissionErrorsCountAsFailures(t *testing.T) {
	var onErr atomic.Int32
	called := false

	summary := Run(context.Background(), records(3), func(context.Context, record) error {
		called = true
		return nil
	}, Options[record]{
		Limiter: rejectingLimiter{},
		OnError: func(record, error) { onErr.Add(1) },
	})

	assert.False(t, called)
	assert.Equal(t, Summary{Total: 3, Failed: 3}, summary)
	assert.Equal(t, int32(3), onErr.Load())
}

func TestRun_CancelledContextFailsItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limiter := NewLimiter(LimiterConfig{MaxConcurrent: 1, Reservoir: 1, RefreshInterval: time.Hour})
	summary := Run(ctx, records(3), func(context.Context, record) error { return nil }, Options[record]{Limiter: limiter})

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, summary.Total, summary.Succeeded+summary.Failed)
	assert.GreaterOrEqual(t, summary.Failed, 2)
}

func TestRun_RespectsConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	limiter := NewLimiter(LimiterConfig{MaxConcurrent: 3})

	summary := Run(context.Background(), records(12), func(context.Context, record) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}, Options[record]{Limiter: limiter})

	assert.Equal(t, 12, summary.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, int32(0), inFlight.Load())
}
