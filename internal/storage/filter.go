package storage

import (
	"regexp"
	"strings"
)

// orderByPattern locates a trailing ORDER BY clause in a filter fragment.
// Planners are told not to embed ORDER BY, but they do anyway for pure
// metadata queries ("most recently modified document"), so the store
// honors it rather than producing SQL like "WHERE (... ORDER BY ...) AND".
var orderByPattern = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)

// SplitOrderBy splits a planner filter fragment into its WHERE predicate
// and an optional trailing ordering clause (including the ORDER BY
// keywords and any LIMIT that follows it). An empty predicate is returned
// as "" and callers substitute the match-everything default.
func SplitOrderBy(filter string) (where, orderBy string) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return "", ""
	}

	loc := orderByPattern.FindStringIndex(filter)
	if loc == nil {
		return filter, ""
	}

	where = strings.TrimSpace(filter[:loc[0]])
	orderBy = strings.TrimSpace(filter[loc[0]:])
	return where, orderBy
}
