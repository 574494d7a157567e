// Package planner turns natural-language queries into structured search
// plans. The reasoning lives in an external language model; this package
// only carries its contract.
package planner

import (
	"context"
	"errors"

	"github.com/metaseek/metaseek/pkg/types"
)

// ErrPlannerUnavailable is returned when the planning backend cannot be
// reached or returns an unparseable plan. The query fails with no side
// effects.
var ErrPlannerUnavailable = errors.New("planner unavailable")

// Planner produces a search plan for a raw user query.
type Planner interface {
	Plan(ctx context.Context, query string) (types.SearchPlan, error)
}

// Static always returns a fixed plan. It backs the --filter CLI path
// and test setups that inject plans directly.
type Static struct {
	plan types.SearchPlan
}

// NewStatic creates a planner returning the given plan for every query.
func NewStatic(plan types.SearchPlan) *Static {
	plan.Normalize()
	return &Static{plan: plan}
}

func (s *Static) Plan(_ context.Context, _ string) (types.SearchPlan, error) {
	return s.plan, nil
}
