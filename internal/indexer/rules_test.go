package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRulesExcluded(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name     string
		path     string
		excluded bool
	}{
		{"plain text file", "/home/u/docs/notes.txt", false},
		{"markdown", "/home/u/readme.md", false},
		{"pdf", "/home/u/report.pdf", false},
		{"unknown extension", "/home/u/photo.png", true},
		{"no extension", "/home/u/Makefile", true},
		{"office lock file", "/home/u/~$report.docx", true},
		{"dotfile", "/home/u/.secrets.txt", true},
		{"under git dir", "/home/u/project/.git/config.txt", true},
		{"under venv", "/home/u/project/.venv/lib/a.py", true},
		{"excluded dir case-insensitive", "/home/u/Node_Modules/pkg/index.json", true},
		{"dir name as substring is fine", "/home/u/models/data.csv", false},
		{"windows separators", `C:\u\__pycache__\mod.py`, true},
		{"empty path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.excluded, rules.Excluded(tt.path))
		})
	}
}

func TestRulesExcludedDir(t *testing.T) {
	rules := DefaultRules()

	assert.True(t, rules.ExcludedDir(".git"))
	assert.True(t, rules.ExcludedDir("DB"))
	assert.True(t, rules.ExcludedDir(".cache"))
	assert.False(t, rules.ExcludedDir("documents"))
}

func TestNewRulesCustom(t *testing.T) {
	rules := NewRules([]string{"Archive"}, []string{".rst"})

	assert.True(t, rules.Excluded("/u/archive/a.rst"))
	assert.False(t, rules.Excluded("/u/docs/a.rst"))
	assert.True(t, rules.Excluded("/u/docs/a.txt"))
}
