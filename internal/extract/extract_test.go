package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTextPlainFile(t *testing.T) {
	path := writeFile(t, "notes.txt", "meeting notes for q3")
	assert.Equal(t, "meeting notes for q3", Text(path, nil))
}

func TestTextKnownExtensions(t *testing.T) {
	for _, name := range []string{"a.md", "a.py", "a.go", "a.csv", "a.json", "a.log"} {
		path := writeFile(t, name, "content")
		assert.Equal(t, "content", Text(path, nil), name)
	}
}

func TestTextExtensionCaseInsensitive(t *testing.T) {
	path := writeFile(t, "README.MD", "hello")
	assert.Equal(t, "hello", Text(path, nil))
}

func TestTextUnknownExtension(t *testing.T) {
	path := writeFile(t, "image.png", "\x89PNG")
	assert.Empty(t, Text(path, nil))
}

func TestTextMissingFile(t *testing.T) {
	assert.Empty(t, Text(filepath.Join(t.TempDir(), "gone.txt"), nil))
}

func TestTextTruncatesLargeFiles(t *testing.T) {
	path := writeFile(t, "big.log", strings.Repeat("x", MaxTextBytes+1000))

	got := Text(path, nil)
	assert.Len(t, got, MaxTextBytes)
}

func TestTextCorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "not a pdf at all")
	assert.Empty(t, Text(path, nil))
}
