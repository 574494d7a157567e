package embedder

import (
	"context"
	"log/slog"
	"time"
)

// Config holds embedding provider configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	CacheSize int
}

// probeTimeout bounds the startup reachability check.
const probeTimeout = 5 * time.Second

// New selects a provider for the session. When a backend URL is
// configured and answers the startup probe it is used; otherwise the
// deterministic hash provider takes over, and its dimension becomes the
// session dimension.
func New(ctx context.Context, cfg Config, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.BaseURL == "" {
		logger.Info("no embedding backend configured, using hash provider",
			"dimension", HashDimension)
		return NewHashProvider()
	}

	cache := NewCache(cfg.CacheSize)
	httpProvider := NewHTTPProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimension, cache, logger)

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := httpProvider.Probe(probeCtx); err != nil {
		_ = httpProvider.Close()
		logger.Warn("embedding backend unreachable, falling back to hash provider",
			"base_url", cfg.BaseURL, "error", err)
		return NewHashProvider()
	}

	logger.Info("embedding backend ready",
		"base_url", cfg.BaseURL, "model", httpProvider.model, "dimension", httpProvider.dimension)
	return httpProvider
}
