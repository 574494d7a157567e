package searcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaseek/metaseek/internal/storage"
	"github.com/metaseek/metaseek/internal/vector"
	"github.com/metaseek/metaseek/pkg/types"
)

// stubProvider returns canned vectors so similarity scores are exact.
type stubProvider struct {
	dim  int
	vecs map[string][]float32
}

func (s *stubProvider) Embed(_ context.Context, text string) []float32 {
	if v, ok := s.vecs[text]; ok {
		return v
	}
	return make([]float32, s.dim)
}

func (s *stubProvider) Dimension() int { return s.dim }
func (s *stubProvider) Name() string   { return "stub" }
func (s *stubProvider) Close() error   { return nil }

type fixture struct {
	engine   *Engine
	meta     *storage.SQLiteStore
	vectors  *vector.Store
	provider *stubProvider
}

func setup(t *testing.T) *fixture {
	t.Helper()

	meta, err := storage.NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	vectors, err := vector.Open(t.TempDir(), nil)
	require.NoError(t, err)

	provider := &stubProvider{dim: 4, vecs: map[string][]float32{}}

	return &fixture{
		engine:   New(meta, vectors, provider, nil),
		meta:     meta,
		vectors:  vectors,
		provider: provider,
	}
}

func (f *fixture) addFile(t *testing.T, path, name, modified string, vec []float32) {
	t.Helper()
	require.NoError(t, f.meta.Upsert(context.Background(), &storage.FileRecord{
		Path:       path,
		Name:       name,
		Size:       10,
		CreatedAt:  modified,
		ModifiedAt: modified,
		AccessedAt: modified,
		ExtraJSON:  "{}",
	}))
	if vec != nil {
		require.NoError(t, f.vectors.Upsert(path, vec))
	}
}

func semanticPlan(query, filter string) types.SearchPlan {
	return types.SearchPlan{SemanticQuery: types.Str(query), Filter: filter}
}

func TestSemanticSearchRanksBySimilarity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.provider.vecs["report"] = []float32{1, 0, 0, 0}
	f.addFile(t, "/a.txt", "a.txt", "2026-01-01T00:00:00Z", []float32{1, 0, 0, 0})
	f.addFile(t, "/b.txt", "b.txt", "2026-01-02T00:00:00Z", []float32{0.5, 0.5, 0, 0})
	f.addFile(t, "/c.txt", "c.txt", "2026-01-03T00:00:00Z", []float32{0, 0, 1, 0})

	results, err := f.engine.Search(ctx, semanticPlan("report", ""), "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "/a.txt", results[0].Path)
	assert.Equal(t, "/b.txt", results[1].Path)
	assert.Equal(t, "/c.txt", results[2].Path)

	require.NotNil(t, results[0].Score)
	assert.InDelta(t, 1.0, *results[0].Score, 1e-6)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 3, results[2].Rank)
}

func TestSemanticSearchFilterNarrowsCandidates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.provider.vecs["notes"] = []float32{1, 0, 0, 0}
	f.addFile(t, "/keep.md", "keep.md", "2026-01-01T00:00:00Z", []float32{0.9, 0.1, 0, 0})
	f.addFile(t, "/drop.txt", "drop.txt", "2026-01-02T00:00:00Z", []float32{1, 0, 0, 0})

	results, err := f.engine.Search(ctx, semanticPlan("notes", "path LIKE '%.md'"), "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/keep.md", results[0].Path)
}

func TestSemanticSearchEmptyStore(t *testing.T) {
	f := setup(t)

	results, err := f.engine.Search(context.Background(), semanticPlan("anything", ""), "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMetadataSearchHonorsOrderBy(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addFile(t, "/old.txt", "old.txt", "2026-01-01T00:00:00Z", nil)
	f.addFile(t, "/new.txt", "new.txt", "2026-02-01T00:00:00Z", nil)
	f.addFile(t, "/mid.txt", "mid.txt", "2026-01-15T00:00:00Z", nil)

	plan := types.SearchPlan{Filter: "1=1 ORDER BY modified_at DESC"}
	results, err := f.engine.Search(ctx, plan, "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "/new.txt", results[0].Path)
	assert.Equal(t, "/mid.txt", results[1].Path)
	assert.Equal(t, "/old.txt", results[2].Path)

	// No semantic ranking applied
	assert.Nil(t, results[0].Score)
}

func TestMetadataSearchResultCap(t *testing.T) {
	f := setup(t)

	for i := 0; i < ResultCap+3; i++ {
		path := fmt.Sprintf("/f%d.txt", i)
		f.addFile(t, path, fmt.Sprintf("f%d.txt", i), "2026-01-01T00:00:00Z", nil)
	}

	results, err := f.engine.Search(context.Background(), types.SearchPlan{}, "")
	require.NoError(t, err)
	assert.Len(t, results, ResultCap)
}

func TestKeywordBonusOverturnsSemanticRanking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// x scores 0.9 semantically and passes the filter; y is excluded by
	// the filter but its name matches the raw query literally.
	f.provider.vecs["project summary"] = []float32{1, 0, 0, 0}
	f.addFile(t, "/x.txt", "x.txt", "2026-01-01T00:00:00Z",
		[]float32{0.9, 0.43589, 0, 0})
	f.addFile(t, "/summary.md", "summary.md", "2026-01-02T00:00:00Z",
		[]float32{0, 1, 0, 0})

	results, err := f.engine.Search(ctx,
		semanticPlan("project summary", "path LIKE '%.txt'"), "summary")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "/summary.md", results[0].Path)
	require.NotNil(t, results[0].Score)
	assert.InDelta(t, KeywordBonus, *results[0].Score, 1e-6)

	assert.Equal(t, "/x.txt", results[1].Path)
	require.NotNil(t, results[1].Score)
	assert.InDelta(t, 0.9, *results[1].Score, 1e-3)
}

func TestKeywordBonusAccumulates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.provider.vecs["budget"] = []float32{1, 0, 0, 0}
	f.addFile(t, "/budget.txt", "budget.txt", "2026-01-01T00:00:00Z", []float32{1, 0, 0, 0})

	results, err := f.engine.Search(ctx, semanticPlan("budget", ""), "budget")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Score)
	assert.InDelta(t, 1.0+KeywordBonus, *results[0].Score, 1e-6)
}

func TestAccessCountIncrementedOnlyForSurfaced(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < ResultCap+2; i++ {
		path := fmt.Sprintf("/f%d.txt", i)
		// Descending modified times so ordering is deterministic
		mod := fmt.Sprintf("2026-01-%02dT00:00:00Z", 20-i)
		f.addFile(t, path, fmt.Sprintf("f%d.txt", i), mod, nil)
	}

	plan := types.SearchPlan{Filter: "1=1 ORDER BY modified_at DESC"}
	results, err := f.engine.Search(ctx, plan, "")
	require.NoError(t, err)
	require.Len(t, results, ResultCap)

	surfaced := make(map[string]bool)
	for _, r := range results {
		surfaced[r.Path] = true
	}

	for i := 0; i < ResultCap+2; i++ {
		path := fmt.Sprintf("/f%d.txt", i)
		rec, err := f.meta.Get(ctx, path)
		require.NoError(t, err)
		if surfaced[path] {
			assert.Equal(t, int64(1), rec.AccessCount, path)
		} else {
			assert.Equal(t, int64(0), rec.AccessCount, path)
		}
	}
}

func TestSearchReportsPreIncrementAccessCount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addFile(t, "/a.txt", "a.txt", "2026-01-01T00:00:00Z", nil)

	results, err := f.engine.Search(ctx, types.SearchPlan{}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(0), results[0].AccessCount)

	rec, err := f.meta.Get(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.AccessCount)
}

func TestSearchBadFilter(t *testing.T) {
	f := setup(t)

	f.addFile(t, "/a.txt", "a.txt", "2026-01-01T00:00:00Z", nil)

	plan := types.SearchPlan{Filter: "nonsense (("}
	_, err := f.engine.Search(context.Background(), plan, "")
	assert.ErrorIs(t, err, storage.ErrBadFilter)
}

func TestMetadataSearchExcludesDeleted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addFile(t, "/live.txt", "live.txt", "2026-01-01T00:00:00Z", nil)
	f.addFile(t, "/gone.txt", "gone.txt", "2026-01-02T00:00:00Z", nil)
	require.NoError(t, f.meta.MarkDeleted(ctx, "/gone.txt"))

	results, err := f.engine.Search(ctx, types.SearchPlan{}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/live.txt", results[0].Path)
}
