package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/trackmatch/internal/matching"
)

const (
	defaultBaseURL = "https://api.spotify.com/v1"
	defaultTimeout = 15 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
	maxLimit       = 50
)

// ErrRateLimited is wrapped into the error returned once every retry was
// answered with HTTP 429.
var ErrRateLimited = errors.New("catalog rate limited")

// Client searches the music catalog over HTTP.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a catalog client that authenticates with a bearer token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		backoff: initialBackoff,
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Search runs q against the catalog and returns the hits as candidates,
// in catalog order. HTTP 429 responses are retried with exponential backoff.
func (c *Client) Search(ctx context.Context, q Query) ([]matching.CandidateRecord, error) {
	qs := q.String()
	if qs == "" {
		return nil, fmt.Errorf("empty catalog query")
	}

	params := url.Values{}
	params.Set("q", qs)
	params.Set("type", q.TypeList())
	if q.Market != "" {
		params.Set("market", q.Market)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(min(q.Limit, maxLimit)))
	}
	endpoint := c.baseURL + "/search?" + params.Encode()

	var lastErr error
	for attempt := range maxRetries {
		resp, err := c.doSearch(ctx, endpoint)
		if err == nil {
			return ToCandidates(resp.Tracks.Items), nil
		}

		var rl *rateLimitError
		if !errors.As(err, &rl) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			wait := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			if rl.retryAfter > wait {
				wait = rl.retryAfter
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRateLimited, maxRetries, lastErr)
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status     int
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func (c *Client) doSearch(ctx context.Context, endpoint string) (*SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitError{status: resp.StatusCode, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &out, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
