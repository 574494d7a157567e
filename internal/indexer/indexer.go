package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/metaseek/metaseek/internal/embedder"
	"github.com/metaseek/metaseek/internal/extract"
	"github.com/metaseek/metaseek/internal/storage"
	"github.com/metaseek/metaseek/internal/vector"
)

// Indexer coordinates the pipeline: extract -> embed -> metadata upsert
// -> vector upsert. The two writes are sequential and not transactional;
// upserts are idempotent so a crash between them heals on the next
// encounter of the path.
type Indexer struct {
	meta     storage.MetadataStore
	vectors  *vector.Store
	provider embedder.Provider
	rules    Rules
	logger   *slog.Logger
	workers  int
}

// Config contains indexer configuration.
type Config struct {
	Rules   Rules
	Workers int // concurrent scan workers (default: runtime.NumCPU())
}

// ScanStats summarizes an initial scan.
type ScanStats struct {
	Indexed  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// New creates an Indexer writing through to both stores.
func New(meta storage.MetadataStore, vectors *vector.Store, provider embedder.Provider, cfg Config, logger *slog.Logger) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		meta:     meta,
		vectors:  vectors,
		provider: provider,
		rules:    cfg.Rules,
		logger:   logger,
		workers:  cfg.Workers,
	}
}

// Rules exposes the eligibility rules, for the watcher's pruning.
func (ix *Indexer) Rules() Rules {
	return ix.rules
}

// Scan walks root and indexes every eligible file, with change detection
// so unchanged files are a no-op. Per-path failures are logged and do
// not abort the scan; Scan itself fails only when root is unwalkable.
func (ix *Indexer) Scan(ctx context.Context, root string) (*ScanStats, error) {
	start := time.Now()

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			ix.logger.Warn("scan error", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && ix.rules.ExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ix.rules.Excluded(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	var indexed, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			done, err := ix.ProcessFile(gctx, path, true)
			switch {
			case err != nil:
				failed.Add(1)
				ix.logger.Error("indexing failed", "path", path, "error", err)
			case done:
				indexed.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &ScanStats{
		Indexed:  int(indexed.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	ix.logger.Info("scan complete", "root", root,
		"indexed", stats.Indexed, "skipped", stats.Skipped, "failed", stats.Failed,
		"duration", stats.Duration)
	return stats, nil
}

// ProcessFile indexes a single path. It returns (false, nil) when the
// path was skipped: excluded, vanished, unchanged, or over the size
// guard. With checkModified set, a stored modified_at at or ahead of the
// filesystem's is treated as up to date.
func (ix *Indexer) ProcessFile(ctx context.Context, path string, checkModified bool) (bool, error) {
	if ix.rules.Excluded(path) {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return false, nil
	}

	modified := info.ModTime().UTC().Format(time.RFC3339)

	if checkModified {
		stored, err := ix.meta.GetModifiedTime(ctx, path)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("change detection: %w", err)
		}
		// RFC 3339 strings compare lexicographically
		if err == nil && modified <= stored {
			return false, nil
		}
	}

	if info.Size() > MaxFileSize {
		ix.logger.Warn("skipping large file", "path", path, "size", info.Size())
		return false, nil
	}

	text := extract.Text(path, ix.logger)
	vec := ix.provider.Embed(ctx, text)

	rec := &storage.FileRecord{
		Path: path,
		Name: filepath.Base(path),
		Size: info.Size(),
		// Creation time is not portable; modification time stands in
		CreatedAt:  modified,
		ModifiedAt: modified,
		AccessedAt: time.Now().UTC().Format(time.RFC3339),
		ExtraJSON:  "{}",
	}
	if err := ix.meta.Upsert(ctx, rec); err != nil {
		return false, fmt.Errorf("metadata upsert: %w", err)
	}
	if err := ix.vectors.Upsert(path, vec); err != nil {
		return false, fmt.Errorf("vector upsert: %w", err)
	}

	ix.logger.Debug("indexed", "path", path, "size", info.Size(), "text_bytes", len(text))
	return true, nil
}

// DeleteFile marks the metadata record deleted and removes the vector.
// Excluded paths are ignored; unknown paths are a no-op.
func (ix *Indexer) DeleteFile(ctx context.Context, path string) error {
	if ix.rules.Excluded(path) {
		return nil
	}
	if err := ix.meta.MarkDeleted(ctx, path); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	if err := ix.vectors.Delete(path); err != nil {
		return fmt.Errorf("vector delete: %w", err)
	}
	ix.logger.Info("removed from index", "path", path)
	return nil
}
