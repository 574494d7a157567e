package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/metaseek/metaseek/internal/api"
	"github.com/metaseek/metaseek/internal/config"
	"github.com/metaseek/metaseek/internal/embedder"
	"github.com/metaseek/metaseek/internal/indexer"
	"github.com/metaseek/metaseek/internal/planner"
	"github.com/metaseek/metaseek/internal/searcher"
	"github.com/metaseek/metaseek/internal/storage"
	"github.com/metaseek/metaseek/internal/vector"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Scan the watch roots, watch for changes and serve queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		configPath, _ := cmd.Flags().GetString("config")
		return runServer(configPath, withMCP)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools on stdio")
	serveCmd.Flags().String("config", "", "config file path (default: metaseek.yaml)")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func runServer(configPath string, withMCP bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting", "version", version, "data_dir", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores and providers, injected everywhere from here
	meta, err := storage.NewSQLiteStore(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer func() {
		if err := meta.Close(); err != nil {
			logger.Warn("closing metadata store", "error", err)
		}
	}()

	vectors, err := vector.Open(cfg.VectorDir(), logger)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}

	provider := embedder.New(ctx, embedder.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.EmbeddingAPIKey(),
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		CacheSize: cfg.Embedding.CacheSize,
	}, logger)
	defer func() { _ = provider.Close() }()

	plnr := planner.NewLLM(cfg.Planner.BaseURL, cfg.PlannerAPIKey(), cfg.Planner.Model, logger)
	engine := searcher.New(meta, vectors, provider, logger)

	ix := indexer.New(meta, vectors, provider, indexer.Config{
		Rules:   indexer.NewRules(cfg.Indexer.ExcludedDirs, cfg.Indexer.Extensions),
		Workers: cfg.Indexer.Workers,
	}, logger)

	// Initial scan then watch each root
	watcher, err := indexer.NewWatcher(ix, logger)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, root := range cfg.Indexer.WatchRoots {
		if _, err := os.Stat(root); err != nil {
			logger.Warn("watch root unavailable, skipping", "root", root, "error", err)
			continue
		}
		if _, err := ix.Scan(ctx, root); err != nil {
			logger.Error("initial scan failed", "root", root, "error", err)
		}
		if err := watcher.Watch(root); err != nil {
			logger.Error("watch setup failed", "root", root, "error", err)
		}
	}
	watcher.Start(ctx)

	apiServer := api.NewServer(plnr, engine, meta, vectors, logger)

	if withMCP {
		mcpServer := api.NewMCPServer(apiServer)
		go func() {
			if err := mcpServer.ServeStdio(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("mcp server error", "error", err)
			}
		}()
		logger.Info("mcp server started on stdio")
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: apiServer.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
