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

	"github.com/kalambet/dishcover/internal/api"
	"github.com/kalambet/dishcover/internal/auth"
	"github.com/kalambet/dishcover/internal/config"
	"github.com/kalambet/dishcover/internal/llm"
	"github.com/kalambet/dishcover/internal/placecache"
	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/preferences"
	"github.com/kalambet/dishcover/internal/recommend"
	"github.com/kalambet/dishcover/internal/storage"
	"github.com/kalambet/dishcover/internal/summary"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dishcover server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running dishcover server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dishcover server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "dishcover.pid")
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

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "dishcover version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	if err := cfg.RequireServerSecrets(); err != nil {
		return err
	}

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(fmt.Sprintf("http://%s/health", cfg.Server.Addr())); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("dishcover is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("dishcover is already running on %s", cfg.Server.Addr())
		return fmt.Errorf("server already running on %s", cfg.Server.Addr())
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

	sessions, err := auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.CookieName, 0)
	if err != nil {
		return err
	}
	generator, err := llm.New(cfg.Generator)
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}
	matcher, err := recommend.NewMatcher(cfg.Recommend.Matcher)
	if err != nil {
		return err
	}

	// Place search: breaker-wrapped client, coalesced, behind the caches.
	placesClient := places.NewClient(cfg.Places.APIKey, cfg.Places.BaseURL, cfg.Places.Timeout)
	searcher := places.NewCoalescer(placesClient, cfg.Cache.CoalesceLinger)
	placeCache := placecache.New(store, cfg.Cache.PlaceTTL, cfg.Cache.SearchTTL)
	finder := placecache.NewFinder(placeCache, searcher, placesClient)

	prefsMgr := preferences.NewManager(store)
	recommender := recommend.NewService(
		prefsMgr,
		store,
		recommend.NewAggregator(store, placeCache, cfg.Recommend.HistoryLimit, cfg.Recommend.MinInteractions),
		generator,
		recommend.NewResolver(placeCache, searcher, matcher, cfg.Recommend.Concurrency),
		cfg.Recommend.DefaultLimit,
	)
	summarizer := summary.NewSummarizer(store, placeCache)

	handler := api.NewHandler(api.Deps{
		Store:       store,
		Sessions:    sessions,
		Preferences: prefsMgr,
		Recommender: recommender,
		Finder:      finder,
		Places:      placeCache,
		Summaries:   summarizer,
		RateLimit:   cfg.Recommend.RateLimit,
		RateWindow:  cfg.Recommend.RateWindow,
	})

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	worker := summary.NewWorker(store, summarizer, 500*time.Millisecond)
	go worker.Run(ctx)

	if cfg.MCP.Enabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Store:       store,
			Preferences: prefsMgr,
			Recommender: recommender,
			Finder:      finder,
			UserID:      cliUser(cfg),
		}, version)
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)", "user_id", cliUser(cfg))
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "dishcover listening on %s\n", addr)
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
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("dishcover is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop dishcover (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to dishcover (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/health", cfg.Server.Addr()))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on %s", cfg.Server.Addr())
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Generator", "%s (%s)", cfg.Generator.Backend, cfg.Generator.Model)
	printStatus("Matcher", "%s", cfg.Recommend.Matcher)
	printStatus("MCP", "%s", enabledLabel(cfg.MCP.Enabled))

	if err == nil && resp.StatusCode == http.StatusOK {
		if c, cerr := newAPIClient(); cerr == nil {
			if r, err := c.get(context.Background(), "/interactions?limit=100"); err == nil {
				var body struct {
					Interactions []struct{} `json:"interactions"`
				}
				if decodeJSON(r, &body) == nil {
					printStatus("Interactions", "%s", countLabel(len(body.Interactions), 100))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func enabledLabel(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
