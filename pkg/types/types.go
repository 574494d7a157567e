package types

import "errors"

// Validation errors for boundary types.
var (
	ErrInvalidRank  = errors.New("rank must be >= 1")
	ErrMissingPath  = errors.New("path is required")
	ErrEmptyFilter  = errors.New("filter cannot be empty after defaulting")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// DefaultFilter matches every record. Planners that have no structured
// constraint must emit it rather than an empty string.
const DefaultFilter = "1=1"

// SearchPlan is the structured plan produced by the external planner.
// SemanticQuery is nil for pure metadata queries. Filter is a SQL WHERE
// fragment over the files table, optionally carrying a trailing ORDER BY.
type SearchPlan struct {
	SemanticQuery *string `json:"semantic_query"`
	Filter        string  `json:"filter"`
}

// Normalize fills in the default filter when the planner omitted it.
func (p *SearchPlan) Normalize() {
	if p.Filter == "" {
		p.Filter = DefaultFilter
	}
	if p.SemanticQuery != nil && *p.SemanticQuery == "" {
		p.SemanticQuery = nil
	}
}

// SearchResult is a single ranked record returned by the query engine.
// Score is nil when no semantic ranking was applied (pure metadata query).
type SearchResult struct {
	Path        string   `json:"path"`
	Name        string   `json:"name"`
	Score       *float64 `json:"score,omitempty"`
	Rank        int      `json:"rank"`
	Size        int64    `json:"size"`
	ModifiedAt  string   `json:"modified_at"`
	AccessCount int64    `json:"access_count"`
}

// Validate checks boundary invariants on a result before it is surfaced.
func (r *SearchResult) Validate() error {
	if r.Path == "" {
		return ErrMissingPath
	}
	if r.Rank < 1 {
		return ErrInvalidRank
	}
	return nil
}

// Str is a convenience for building plans with a semantic query inline.
func Str(s string) *string { return &s }
