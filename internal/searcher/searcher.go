// Package searcher implements the hybrid query engine: semantic
// candidates narrowed by a metadata filter, merged with literal keyword
// matches, ranked into a bounded result list.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/metaseek/metaseek/internal/embedder"
	"github.com/metaseek/metaseek/internal/storage"
	"github.com/metaseek/metaseek/internal/vector"
	"github.com/metaseek/metaseek/pkg/types"
)

const (
	// CandidatePool is how many vector neighbors are fetched before the
	// metadata filter narrows them, wider than the result cap so
	// filtering has room to discard.
	CandidatePool = 20

	// ResultCap bounds every result list.
	ResultCap = 5

	// KeywordBonus is added to a record's score when the raw query
	// matches its name literally. It exceeds the cosine similarity range
	// [0,1] so literal matches are never out-ranked by loose semantic
	// ones.
	KeywordBonus = 1.0
)

// Engine executes search plans against the two stores.
type Engine struct {
	meta     storage.MetadataStore
	vectors  *vector.Store
	provider embedder.Provider
	logger   *slog.Logger
}

// New creates an Engine over the given stores and embedding provider.
func New(meta storage.MetadataStore, vectors *vector.Store, provider embedder.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		meta:     meta,
		vectors:  vectors,
		provider: provider,
		logger:   logger,
	}
}

// entry is a candidate result before ranking.
type entry struct {
	rec    *storage.FileRecord
	score  float64
	scored bool
}

// Search runs the plan and returns at most ResultCap ranked results.
// rawQuery is the user's original text, used for the keyword boost;
// access counters are bumped only for records actually returned.
func (e *Engine) Search(ctx context.Context, plan types.SearchPlan, rawQuery string) ([]*types.SearchResult, error) {
	plan.Normalize()

	var (
		entries []*entry
		err     error
	)
	if plan.SemanticQuery != nil {
		entries, err = e.semanticBranch(ctx, *plan.SemanticQuery, plan.Filter)
	} else {
		entries, err = e.metadataBranch(ctx, plan.Filter)
	}
	if err != nil {
		return nil, err
	}

	if rawQuery != "" {
		entries, err = e.keywordMerge(ctx, entries, rawQuery)
		if err != nil {
			return nil, err
		}
	}

	// Stable sort keeps the branch ordering for equal scores
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	if len(entries) > ResultCap {
		entries = entries[:ResultCap]
	}

	results := make([]*types.SearchResult, 0, len(entries))
	for rank, en := range entries {
		res := &types.SearchResult{
			Path:        en.rec.Path,
			Name:        en.rec.Name,
			Rank:        rank + 1,
			Size:        en.rec.Size,
			ModifiedAt:  en.rec.ModifiedAt,
			AccessCount: en.rec.AccessCount,
		}
		if en.scored {
			score := en.score
			res.Score = &score
		}
		results = append(results, res)

		// Usage signal for surfaced records only
		if err := e.meta.IncrementAccessCount(ctx, en.rec.Path); err != nil {
			e.logger.Warn("access count update failed", "path", en.rec.Path, "error", err)
		}
	}

	e.logger.Debug("search complete",
		"semantic", plan.SemanticQuery != nil, "filter", plan.Filter, "results", len(results))
	return results, nil
}

// semanticBranch embeds the query, pulls a candidate pool from the
// vector store, narrows it by the filter and reattaches similarity
// scores.
func (e *Engine) semanticBranch(ctx context.Context, query, filter string) ([]*entry, error) {
	vec := e.provider.Embed(ctx, query)
	candidates := e.vectors.Query(vec, CandidatePool)
	if len(candidates) == 0 {
		return nil, nil
	}

	paths := make([]string, len(candidates))
	scoreOf := make(map[string]float64, len(candidates))
	for i, c := range candidates {
		paths[i] = c.Path
		scoreOf[c.Path] = c.Score
	}

	records, err := e.meta.QueryByPathsAndFilter(ctx, paths, filter)
	if err != nil {
		return nil, fmt.Errorf("narrow candidates: %w", err)
	}

	entries := make([]*entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, &entry{
			rec:    rec,
			score:  scoreOf[rec.Path],
			scored: true,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})
	return entries, nil
}

// metadataBranch runs the filter alone with a baseline score of zero,
// preserving any ordering the filter itself specifies.
func (e *Engine) metadataBranch(ctx context.Context, filter string) ([]*entry, error) {
	records, err := e.meta.QueryByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("metadata query: %w", err)
	}

	entries := make([]*entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, &entry{rec: rec})
	}
	return entries, nil
}

// keywordMerge unions literal name matches of the raw query into the
// candidate set, adding the fixed bonus to existing scores. Keyword
// matches bypass the plan's filter: a literal hit is surfaced even when
// the structured filter would have excluded it.
func (e *Engine) keywordMerge(ctx context.Context, entries []*entry, rawQuery string) ([]*entry, error) {
	matches, err := e.meta.SearchNames(ctx, rawQuery)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	if len(matches) == 0 {
		return entries, nil
	}

	byPath := make(map[string]*entry, len(entries))
	for _, en := range entries {
		byPath[en.rec.Path] = en
	}

	for _, path := range matches {
		if en, ok := byPath[path]; ok {
			en.score += KeywordBonus
			en.scored = true
			continue
		}
		rec, err := e.meta.Get(ctx, path)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("keyword lookup: %w", err)
		}
		entries = append(entries, &entry{
			rec:    rec,
			score:  KeywordBonus,
			scored: true,
		})
	}
	return entries, nil
}
