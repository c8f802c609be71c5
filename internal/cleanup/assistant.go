// Package cleanup asks a local language model for corrected track tags when
// a library record fails to match.
package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/trackmatch/internal/matching"
	"github.com/kalambet/trackmatch/internal/ollama"
)

// DefaultTimeout bounds a single suggestion request.
const DefaultTimeout = 10 * time.Second

const maxAlternatives = 3

// Chatter is the chat capability the assistant needs. Implemented by *ollama.Client.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// Suggestion is the corrected metadata proposed for a record.
type Suggestion struct {
	Artist             string   `json:"artist"`
	Title              string   `json:"title"`
	Album              string   `json:"album"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning,omitempty"`
	AlternativeQueries []string `json:"alternative_queries,omitempty"`
}

// Record returns the suggestion as a LocalRecord.
func (s Suggestion) Record() matching.LocalRecord {
	return matching.LocalRecord{Artist: s.Artist, Title: s.Title, Album: s.Album}
}

// Assistant produces metadata suggestions. Suggestions are advisory; any
// failure yields ok=false and never an error.
type Assistant struct {
	chat    Chatter
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Assistant. A non-positive timeout selects DefaultTimeout.
func New(chat Chatter, model string, timeout time.Duration) *Assistant {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Assistant{chat: chat, model: model, timeout: timeout, logger: slog.Default()}
}

// Suggest asks the model for corrected tags for local.
func (a *Assistant) Suggest(ctx context.Context, local matching.LocalRecord) (Suggestion, bool) {
	if !local.HasTitle() && !local.HasArtist() && strings.TrimSpace(local.Album) == "" {
		return Suggestion{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.chat.Chat(ctx, a.model, BuildPrompt(local), suggestionSchema())
	if err != nil {
		a.logger.Warn("metadata suggestion chat failed", "error", err)
		return Suggestion{}, false
	}

	s, err := parseSuggestion(raw)
	if err != nil {
		a.logger.Warn("unusable metadata suggestion", "error", err, "response", raw)
		return Suggestion{}, false
	}
	return s, true
}

// parseSuggestion extracts the JSON object from raw, tolerating markdown
// fences and text around it, and normalizes the result.
func parseSuggestion(raw string) (Suggestion, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return Suggestion{}, err
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(obj), &s); err != nil {
		return Suggestion{}, fmt.Errorf("unmarshal suggestion: %w", err)
	}

	s.Artist = strings.TrimSpace(s.Artist)
	s.Title = strings.TrimSpace(s.Title)
	s.Album = strings.TrimSpace(s.Album)
	if s.Title == "" {
		return Suggestion{}, fmt.Errorf("suggestion has no title")
	}
	s.Confidence = min(max(s.Confidence, 0), 1)

	var alts []string
	for _, q := range s.AlternativeQueries {
		if q = strings.TrimSpace(q); q != "" && len(alts) < maxAlternatives {
			alts = append(alts, q)
		}
	}
	s.AlternativeQueries = alts
	return s, nil
}

func extractJSONObject(resp string) (string, error) {
	s := strings.TrimSpace(resp)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return s[start : end+1], nil
}
