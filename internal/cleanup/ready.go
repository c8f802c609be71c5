package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/trackmatch/internal/ollama"
)

const warmUpTimeout = 30 * time.Second

// Backend is a model server the assistant can be prepared against.
type Backend interface {
	Chatter
	IsRunning(ctx context.Context) bool
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(ollama.PullProgress)) error
}

// Prepare makes sure model is present on b, pulling it when missing, and
// loads it with a throwaway chat so the first suggestion is not slowed by
// model load. A failed warm-up is logged and ignored.
func Prepare(ctx context.Context, b Backend, model string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if !b.IsRunning(ctx) {
		return fmt.Errorf("ollama is not running; start it with: ollama serve")
	}
	if model == "" {
		return fmt.Errorf("no cleanup model configured")
	}

	if !b.HasModel(ctx, model) {
		logger.Info("pulling cleanup model", "model", model)
		lastPct := -1
		err := b.PullModel(ctx, model, func(p ollama.PullProgress) {
			if p.Total <= 0 {
				return
			}
			// At most one line per 10%.
			if pct := int(p.Completed * 100 / p.Total); pct/10 != lastPct/10 {
				lastPct = pct
				logger.Debug("pull progress", "model", model, "status", p.Status, "percent", pct)
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
	}

	warmCtx, cancel := context.WithTimeout(ctx, warmUpTimeout)
	defer cancel()
	if _, err := b.Chat(warmCtx, model, []ollama.Message{{Role: "user", Content: "ping"}}, nil); err != nil {
		logger.Warn("cleanup model warm-up failed", "model", model, "error", err)
	}
	logger.Info("cleanup model ready", "model", model)
	return nil
}
