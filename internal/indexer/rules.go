package indexer

import (
	"path/filepath"
	"strings"
)

// MaxFileSize is the size guard: larger files are skipped outright,
// never partially indexed.
const MaxFileSize = 100 * 1024 * 1024 // 100 MiB

// DefaultExcludedDirs are directory names whose contents are never
// indexed, matched case-insensitively as path segments.
var DefaultExcludedDirs = []string{
	".venv",
	"site-packages",
	"node_modules",
	"__pycache__",
	".git",
	".vscode",
	"db",
	"model",
}

// DefaultExtensions is the whitelist of indexable file extensions.
var DefaultExtensions = []string{
	".txt", ".md", ".py", ".go", ".csv", ".json", ".log", ".pdf",
}

// Rules decides which paths are eligible for indexing.
type Rules struct {
	excludedDirs map[string]bool
	extensions   map[string]bool
}

// NewRules builds eligibility rules. Nil slices select the defaults.
func NewRules(excludedDirs, extensions []string) Rules {
	if excludedDirs == nil {
		excludedDirs = DefaultExcludedDirs
	}
	if extensions == nil {
		extensions = DefaultExtensions
	}

	r := Rules{
		excludedDirs: make(map[string]bool, len(excludedDirs)),
		extensions:   make(map[string]bool, len(extensions)),
	}
	for _, d := range excludedDirs {
		r.excludedDirs[strings.ToLower(d)] = true
	}
	for _, e := range extensions {
		r.extensions[strings.ToLower(e)] = true
	}
	return r
}

// DefaultRules returns the rules used when nothing is configured.
func DefaultRules() Rules {
	return NewRules(nil, nil)
}

// Excluded reports whether path is ineligible: under an excluded
// directory, a lock or hidden file, or carrying an unknown extension.
// Excluded paths are ignored on every event, deletions included.
func (r Rules) Excluded(path string) bool {
	if path == "" {
		return true
	}

	name := filepath.Base(path)
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return true
	}

	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, segment := range strings.Split(normalized, "/") {
		if r.excludedDirs[strings.ToLower(segment)] {
			return true
		}
	}

	return !r.extensions[strings.ToLower(filepath.Ext(path))]
}

// ExcludedDir reports whether a directory name alone is excluded,
// used to prune walks and skip watch registration.
func (r Rules) ExcludedDir(name string) bool {
	return strings.HasPrefix(name, ".") || r.excludedDirs[strings.ToLower(name)]
}
