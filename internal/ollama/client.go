// Package ollama is a small client for the parts of the Ollama HTTP API the
// metadata cleanup assistant uses: model presence, pulls and chat.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is where a local Ollama server listens by default.
const DefaultBaseURL = "http://localhost:11434"

// DefaultKeepAlive keeps the model loaded between suggestions of one batch.
const DefaultKeepAlive = 10 * time.Minute

const probeTimeout = 2 * time.Second

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema is a JSON schema passed as the chat "format" to force structured output.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty is one field of a Schema. Items is set for arrays.
type SchemaProperty struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Items       *SchemaProperty `json:"items,omitempty"`
}

// PullProgress is one line of the streamed pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Client talks to one Ollama server. Request deadlines come from the
// caller's context.
type Client struct {
	baseURL    string
	keepAlive  time.Duration
	httpClient *http.Client
}

// New creates a Client for baseURL, or DefaultBaseURL when empty.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keepAlive:  DefaultKeepAlive,
		httpClient: &http.Client{},
	}
}

// IsRunning reports whether the server answers the model listing.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := c.Models(ctx)
	return err == nil
}

// Models lists the names of locally available models, tags included.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HasModel reports whether name is present. An untagged name matches any tag.
func (c *Client) HasModel(ctx context.Context, name string) bool {
	models, err := c.Models(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		base, _, _ := strings.Cut(m, ":")
		if m == name || base == name {
			return true
		}
	}
	return false
}

// PullModel downloads name and reports each progress line to onProgress,
// which may be nil. An error line in the stream fails the pull.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	resp, err := c.send(ctx, http.MethodPost, "/api/pull", map[string]any{"model": name, "name": name, "stream": true})
	if err != nil {
		return fmt.Errorf("pulling %s: %w", name, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		if err := dec.Decode(&p); errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("reading pull progress: %w", err)
		}
		if p.Error != "" {
			return fmt.Errorf("pulling %s: %s", name, p.Error)
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []Message      `json:"messages"`
	Stream    bool           `json:"stream"`
	Format    any            `json:"format,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	KeepAlive string         `json:"keep_alive,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Chat returns the model's reply to messages. A non-nil schema is sent as
// the response format with temperature 0, so the same tags always get the
// same suggestion.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, schema *Schema) (string, error) {
	req := chatRequest{Model: model, Messages: messages, KeepAlive: c.keepAlive.String()}
	if schema != nil {
		req.Format = schema
		req.Options = map[string]any{"temperature": 0}
	}

	var out chatResponse
	if err := c.call(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return "", fmt.Errorf("chat with %s: %w", model, err)
	}
	return out.Message.Content, nil
}

// call sends payload and decodes a JSON answer into out.
func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// send returns the response only for HTTP 200; the caller closes the body.
// Other statuses become errors carrying the start of the body.
func (c *Client) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}
