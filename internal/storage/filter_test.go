package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitOrderBy(t *testing.T) {
	tests := []struct {
		name      string
		filter    string
		wantWhere string
		wantOrder string
	}{
		{"empty", "", "", ""},
		{"predicate only", "path LIKE '%.py'", "path LIKE '%.py'", ""},
		{
			"predicate with order",
			"path LIKE '%.docx' ORDER BY modified_at DESC",
			"path LIKE '%.docx'",
			"ORDER BY modified_at DESC",
		},
		{
			"lowercase keywords",
			"size > 100 order by size asc",
			"size > 100",
			"order by size asc",
		},
		{
			"order with limit",
			"1=1 ORDER BY modified_at DESC LIMIT 1",
			"1=1",
			"ORDER BY modified_at DESC LIMIT 1",
		},
		{"order only", "ORDER BY access_count DESC", "", "ORDER BY access_count DESC"},
		{"extra whitespace", "  1=1  ", "1=1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, order := SplitOrderBy(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantOrder, order)
		})
	}
}
