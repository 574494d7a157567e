// Package types provides the shared type definitions exposed at metaseek's
// boundaries: the structured search plan consumed by the query engine and
// the ranked results it produces.
//
// SearchPlan is produced by an external planner (typically an LLM) from a
// natural-language query:
//
//	plan := types.SearchPlan{
//	    SemanticQuery: types.Str("python code for machine learning"),
//	    Filter:        "path LIKE '%.py'",
//	}
//
// A nil SemanticQuery means a pure metadata query; an empty Filter means
// "match everything".
package types
