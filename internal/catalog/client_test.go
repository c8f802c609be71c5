package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchJSON = `{"tracks":{"total":2,"limit":20,"items":[
 {"id":"t1","name":"Something","uri":"spotify:track:t1","duration_ms":182000,"popularity":71,
  "artists":[{"id":"a1","name":"The Beatles"}],
  "album":{"id":"al1","name":"Abbey Road","artists":[{"id":"a1","name":"The Beatles"}]}},
 {"id":"t2","name":"Something","artists":[{"id":"a2","name":"Joe Cocker"},{"id":"a3","name":"Guest"}],
  "album":{"id":"al2","name":"Joe Cocker!"}}
]}}`

func newTestClient(url string) *Client {
	c := NewClientWithBaseURL("test-token", url)
	c.backoff = time.Millisecond
	return c
}

func TestSearch_BuildsRequest(t *testing.T) {
	var gotPath, gotQ, gotType, gotMarket, gotLimit, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQ = r.URL.Query().Get("q")
		gotType = r.URL.Query().Get("type")
		gotMarket = r.URL.Query().Get("market")
		gotLimit = r.URL.Query().Get("limit")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, searchJSON)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Search(context.Background(), Query{Artist: "The Beatles", Track: "Something", Market: "US", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "/search", gotPath)
	assert.Equal(t, "artist:The Beatles track:Something", gotQ)
	assert.Equal(t, "track", gotType)
	assert.Equal(t, "US", gotMarket)
	assert.Equal(t, "10", gotLimit)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestSearch_MapsHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, searchJSON)
	}))
	defer srv.Close()

	cands, err := newTestClient(srv.URL).Search(context.Background(), Query{Track: "Something"})
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.Equal(t, "t1", cands[0].ID)
	assert.Equal(t, "Something", cands[0].Title)
	assert.Equal(t, []string{"The Beatles"}, cands[0].Artists)
	assert.Equal(t, "Abbey Road", cands[0].Album)
	assert.Equal(t, "spotify:track:t1", cands[0].URI)
	assert.Equal(t, 182000, cands[0].DurationMs)

	assert.Equal(t, []string{"Joe Cocker", "Guest"}, cands[1].Artists)
	assert.Equal(t, "Joe Cocker", cands[1].PrimaryArtist())
}

func TestSearch_LimitClamped(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		fmt.Fprint(w, `{"tracks":{"items":[]}}`)
	}))
	defer srv.Close()

	cands, err := newTestClient(srv.URL).Search(context.Background(), Query{Track: "x", Limit: 500})
	require.NoError(t, err)
	assert.Empty(t, cands)
	assert.Equal(t, "50", gotLimit)
}

func TestSearch_EmptyQuery(t *testing.T) {
	_, err := NewClient("k").Search(context.Background(), Query{Artist: "  "})
	require.Error(t, err)
}

func TestSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"status":401,"message":"Invalid access token"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), Query{Track: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.False(t, errors.Is(err, ErrRateLimited))
}

func TestSearch_RateLimitRetry(t *testing.T) {
	var attempt atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, searchJSON)
	}))
	defer srv.Close()

	cands, err := newTestClient(srv.URL).Search(context.Background(), Query{Track: "Something"})
	require.NoError(t, err)
	assert.Len(t, cands, 2)
	assert.Equal(t, int32(2), attempt.Load())
}

func TestSearch_RateLimitExhausted(t *testing.T) {
	var attempt atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), Query{Track: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, int32(maxRetries), attempt.Load())
}

func TestSearch_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestClient(srv.URL).Search(ctx, Query{Track: "x"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
