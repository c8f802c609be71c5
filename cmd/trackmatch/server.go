package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/trackmatch/internal/api"
	"github.com/kalambet/trackmatch/internal/batch"
	"github.com/kalambet/trackmatch/internal/cache"
	"github.com/kalambet/trackmatch/internal/catalog"
	"github.com/kalambet/trackmatch/internal/cleanup"
	"github.com/kalambet/trackmatch/internal/config"
	"github.com/kalambet/trackmatch/internal/ollama"
	"github.com/kalambet/trackmatch/internal/reconcile"
	"github.com/kalambet/trackmatch/internal/search"
	"github.com/kalambet/trackmatch/internal/storage"
	"github.com/kalambet/trackmatch/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the trackmatch server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running trackmatch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show trackmatch system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "trackmatch.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// buildService wires the catalog client, cache, limiter and optional cleanup
// assistant into a reconcile.Service.
func buildService(ctx context.Context, cfg config.Config, store *storage.Store) (*reconcile.Service, *cache.ResultCache, error) {
	client := catalog.NewClientWithBaseURL(cfg.Catalog.Token, cfg.Catalog.BaseURL)

	results := cache.New(store, cfg.Cache.TTL)

	limiter := batch.NewLimiter(batch.LimiterConfig{
		MaxConcurrent:   cfg.Limiter.MaxConcurrent,
		MinTime:         cfg.Limiter.MinTime,
		Reservoir:       cfg.Limiter.Reservoir,
		RefreshInterval: cfg.Limiter.RefreshInterval,
	})

	var suggester reconcile.Suggester
	if cfg.Cleanup.Enabled {
		llm := ollama.New(cfg.Ollama.BaseURL)
		if err := cleanup.Prepare(ctx, llm, cfg.Ollama.Model, slog.Default()); err != nil {
			return nil, nil, fmt.Errorf("preparing cleanup model: %w", err)
		}
		suggester = cleanup.New(llm, cfg.Ollama.Model, cfg.Cleanup.Timeout)
		slog.Info("metadata cleanup enabled", "model", cfg.Ollama.Model)
	}

	svc := reconcile.New(reconcile.Deps{
		Store:   store,
		Catalog: client,
		Cache:   results,
		Limiter: limiter,
		Cleanup: suggester,
		Logger:  slog.Default(),
	}, reconcile.Options{
		AutoAccept: cfg.Matching.AutoAccept,
		Search: search.Options{
			Market: cfg.Catalog.Market,
			Limit:  cfg.Catalog.Limit,
		},
	})
	return svc, results, nil
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "trackmatch version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("trackmatch is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("trackmatch is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	svc, results, err := buildService(ctx, cfg, store)
	if err != nil {
		return err
	}

	// Drop results that expired while the server was down.
	if n, err := results.PurgeExpired(ctx); err != nil {
		slog.Warn("purging expired cache entries", "error", err)
	} else if n > 0 {
		slog.Info("purged expired cache entries", "count", n)
	}

	handler := api.NewAppHandler(api.AppDeps{
		Store:   store,
		Service: svc,
		Cache:   results,
		Token:   apiToken,
		Version: version,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	w := worker.New(store, svc, 500*time.Millisecond)
	go w.Run(ctx)

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store, Service: svc, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "trackmatch listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("trackmatch is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("could not stop trackmatch (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to trackmatch (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.Catalog.Token == "" {
		printStatus("Catalog", "%s (no token configured)", cfg.Catalog.BaseURL)
	} else {
		printStatus("Catalog", "%s", cfg.Catalog.BaseURL)
	}

	if cfg.Cleanup.Enabled {
		if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
			printStatus("Cleanup", "%s at %s", cfg.Ollama.Model, cfg.Ollama.BaseURL)
		} else {
			printStatus("Cleanup", "Ollama not running at %s", cfg.Ollama.BaseURL)
		}
	} else {
		printStatus("Cleanup", "disabled")
	}

	if running {
		if c, err := newAPIClient(); err == nil {
			if resp, err := c.get(ctx, "/stats"); err == nil {
				var stats api.StatsResponse
				if decodeJSON(resp, &stats) == nil {
					for _, st := range []string{storage.StatusUnmatched, storage.StatusSuggested, storage.StatusMatched, storage.StatusNoMatch, storage.StatusError} {
						printStatus("Tracks "+st, "%d", stats.Tracks[st])
					}
					printStatus("Cache", "%d entries, %d hits, %d misses", stats.CacheEntries, stats.CacheHits, stats.CacheMisses)
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
