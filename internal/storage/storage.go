package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist or is soft-deleted
	ErrNotFound = errors.New("not found")
	// ErrBadFilter is returned when a planner-supplied filter fragment fails to execute
	ErrBadFilter = errors.New("bad filter expression")
)

// FileRecord is one row of the files table: the durable metadata for a
// single indexed path. Timestamps are RFC 3339 strings so change detection
// and range filters reduce to lexicographic comparison.
type FileRecord struct {
	Path              string
	Name              string
	Size              int64
	CreatedAt         string
	ModifiedAt        string
	AccessedAt        string
	IsDeleted         bool
	AccessCount       int64
	TotalTimeSpentHrs float64
	ExtraJSON         string
}

// MetadataStore is the interface over the files table. The indexing path
// uses the metadata-only Upsert (counters are never touched by it);
// counters change only through IncrementAccessCount.
type MetadataStore interface {
	// Upsert inserts or replaces the metadata fields for rec.Path and
	// clears the soft-delete flag. AccessCount and TotalTimeSpentHrs of an
	// existing row are preserved.
	Upsert(ctx context.Context, rec *FileRecord) error

	// MarkDeleted sets the soft-delete flag. Idempotent; unknown paths are
	// a no-op.
	MarkDeleted(ctx context.Context, path string) error

	// Get returns the active record for path, or ErrNotFound.
	Get(ctx context.Context, path string) (*FileRecord, error)

	// GetModifiedTime returns the stored modified_at for an active path,
	// or ErrNotFound.
	GetModifiedTime(ctx context.Context, path string) (string, error)

	// IncrementAccessCount bumps the usage counter for an active path.
	// Unknown or deleted paths are a no-op.
	IncrementAccessCount(ctx context.Context, path string) error

	// QueryByPathsAndFilter returns active records restricted to the given
	// candidate paths AND the filter predicate. The path list is always
	// parameterized.
	QueryByPathsAndFilter(ctx context.Context, paths []string, filter string) ([]*FileRecord, error)

	// QueryByFilter returns active records matching the filter predicate.
	// A trailing ORDER BY clause in the filter is honored over the full
	// filtered set.
	QueryByFilter(ctx context.Context, filter string) ([]*FileRecord, error)

	// GetRecent returns up to limit active records ordered by modified_at
	// descending.
	GetRecent(ctx context.Context, limit int) ([]*FileRecord, error)

	// GetPopular returns up to limit active records with at least one
	// access, ordered by access_count descending then modified_at
	// descending.
	GetPopular(ctx context.Context, limit int) ([]*FileRecord, error)

	// SearchNames returns the paths of active records whose name contains
	// term (case-insensitive substring).
	SearchNames(ctx context.Context, term string) ([]string, error)

	// CountActive returns the number of active records.
	CountActive(ctx context.Context) (int, error)

	Close() error
}
