package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStore {
	// Use in-memory database for testing
	store, err := NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(path, modifiedAt string) *FileRecord {
	return &FileRecord{
		Path:       path,
		Name:       baseName(path),
		Size:       128,
		CreatedAt:  "2025-01-01T10:00:00Z",
		ModifiedAt: modifiedAt,
		AccessedAt: modifiedAt,
		ExtraJSON:  "{}",
	}
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func TestUpsertAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Name)
	assert.Equal(t, int64(128), got.Size)
	assert.Equal(t, "2025-02-01T12:00:00Z", got.ModifiedAt)
	assert.Equal(t, int64(0), got.AccessCount)
	assert.False(t, got.IsDeleted)
}

func TestUpsertPreservesCounters(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")
	require.NoError(t, store.Upsert(ctx, rec))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.IncrementAccessCount(ctx, "/docs/a.txt"))
	}

	// Re-index with identical content: counters must survive
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.AccessCount)
	assert.Equal(t, 0.0, got.TotalTimeSpentHrs)
}

func TestUpsertRevivesDeleted(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")
	require.NoError(t, store.Upsert(ctx, rec))
	require.NoError(t, store.IncrementAccessCount(ctx, "/docs/a.txt"))
	require.NoError(t, store.MarkDeleted(ctx, "/docs/a.txt"))

	_, err := store.Get(ctx, "/docs/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	// Re-creation of the path clears the flag but keeps history
	require.NoError(t, store.Upsert(ctx, rec))
	got, err := store.Get(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccessCount)
}

func TestMarkDeletedIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// Unknown path is a no-op, not an error
	assert.NoError(t, store.MarkDeleted(ctx, "/nope"))
	assert.NoError(t, store.MarkDeleted(ctx, "/nope"))
}

func TestGetModifiedTime(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.GetModifiedTime(ctx, "/docs/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")))

	mod, err := store.GetModifiedTime(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01T12:00:00Z", mod)

	// Deleted records are invisible to change detection
	require.NoError(t, store.MarkDeleted(ctx, "/docs/a.txt"))
	_, err = store.GetModifiedTime(ctx, "/docs/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementAccessCountSkipsDeleted(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")))
	require.NoError(t, store.MarkDeleted(ctx, "/docs/a.txt"))
	require.NoError(t, store.IncrementAccessCount(ctx, "/docs/a.txt"))

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")))
	got, err := store.Get(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.AccessCount)
}

func TestQueryByPathsAndFilter(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")))
	require.NoError(t, store.Upsert(ctx, testRecord("/docs/b.py", "2025-02-02T12:00:00Z")))
	require.NoError(t, store.Upsert(ctx, testRecord("/docs/c.py", "2025-02-03T12:00:00Z")))
	require.NoError(t, store.MarkDeleted(ctx, "/docs/c.py"))

	// Candidate pool narrowed by filter; deleted records excluded
	recs, err := store.QueryByPathsAndFilter(ctx,
		[]string{"/docs/a.txt", "/docs/b.py", "/docs/c.py"}, "path LIKE '%.py'")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "/docs/b.py", recs[0].Path)

	// Empty candidate pool short-circuits
	recs, err = store.QueryByPathsAndFilter(ctx, nil, "1=1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestQueryByFilter(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")))
	require.NoError(t, store.Upsert(ctx, testRecord("/docs/b.py", "2025-02-02T12:00:00Z")))
	require.NoError(t, store.Upsert(ctx, testRecord("/docs/c.md", "2025-02-03T12:00:00Z")))
	require.NoError(t, store.MarkDeleted(ctx, "/docs/c.md"))

	recs, err := store.QueryByFilter(ctx, "1=1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestQueryByFilterHonorsOrderBy(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")))
	require.NoError(t, store.Upsert(ctx, testRecord("/docs/b.txt", "2025-02-03T12:00:00Z")))
	require.NoError(t, store.Upsert(ctx, testRecord("/docs/c.txt", "2025-02-02T12:00:00Z")))

	recs, err := store.QueryByFilter(ctx, "path LIKE '%.txt' ORDER BY modified_at DESC")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "/docs/b.txt", recs[0].Path)
	assert.Equal(t, "/docs/c.txt", recs[1].Path)
	assert.Equal(t, "/docs/a.txt", recs[2].Path)

	// ORDER BY with no predicate at all
	recs, err = store.QueryByFilter(ctx, "ORDER BY modified_at ASC")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "/docs/a.txt", recs[0].Path)
}

func TestQueryByFilterMalformed(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")))

	_, err := store.QueryByFilter(ctx, "no_such_column = 'x'")
	assert.ErrorIs(t, err, ErrBadFilter)

	// A bad filter must not corrupt subsequent queries
	recs, err := store.QueryByFilter(ctx, "1=1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestGetRecentAndPopular(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")))
	require.NoError(t, store.Upsert(ctx, testRecord("/docs/b.py", "2025-02-02T12:00:00Z")))

	recent, err := store.GetRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "/docs/b.py", recent[0].Path)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.IncrementAccessCount(ctx, "/docs/a.txt"))
	}
	require.NoError(t, store.IncrementAccessCount(ctx, "/docs/b.py"))

	popular, err := store.GetPopular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "/docs/a.txt", popular[0].Path)
	assert.Equal(t, "/docs/b.py", popular[1].Path)
}

func TestGetPopularExcludesZeroAccess(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/a.txt", "2025-02-01T12:00:00Z")))

	popular, err := store.GetPopular(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, popular)
}

func TestSearchNames(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("/docs/report_2025.txt", "2025-02-01T12:00:00Z")))
	require.NoError(t, store.Upsert(ctx, testRecord("/docs/notes.md", "2025-02-02T12:00:00Z")))
	require.NoError(t, store.Upsert(ctx, testRecord("/old/report_old.txt", "2025-02-03T12:00:00Z")))
	require.NoError(t, store.MarkDeleted(ctx, "/old/report_old.txt"))

	paths, err := store.SearchNames(ctx, "report")
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/report_2025.txt"}, paths)

	// LIKE wildcards in the term are literals, not patterns
	paths, err = store.SearchNames(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, paths)

	paths, err = store.SearchNames(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestCountActive(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Upsert(ctx, testRecord(fmt.Sprintf("/docs/f%d.txt", i), "2025-02-01T12:00:00Z")))
	}
	require.NoError(t, store.MarkDeleted(ctx, "/docs/f0.txt"))

	n, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
