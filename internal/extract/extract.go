// Package extract pulls plain text out of files for embedding.
package extract

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxTextBytes caps extracted text so embedding inputs stay bounded.
const MaxTextBytes = 1 << 20 // 1 MiB

var plainTextExts = map[string]bool{
	".txt":  true,
	".md":   true,
	".py":   true,
	".go":   true,
	".csv":  true,
	".json": true,
	".log":  true,
}

// Text returns the extracted text of the file at path, truncated to
// MaxTextBytes. Unknown extensions and extraction failures of any kind
// yield an empty string; the file is still indexed by metadata alone.
func Text(path string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case plainTextExts[ext]:
		return readPlain(path, logger)
	case ext == ".pdf":
		return readPDF(path, logger)
	default:
		return ""
	}
}

func readPlain(path string, logger *slog.Logger) string {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("text extraction failed", "path", path, "error", err)
		return ""
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(f, MaxTextBytes))
	if err != nil {
		logger.Warn("text extraction failed", "path", path, "error", err)
		return ""
	}
	return string(data)
}

func readPDF(path string, logger *slog.Logger) string {
	// The pdf reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("pdf extraction panicked", "path", path, "panic", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		logger.Warn("pdf extraction failed", "path", path, "error", err)
		return ""
	}
	defer func() {
		_ = f.Close()
	}()

	plain, err := reader.GetPlainText()
	if err != nil {
		logger.Warn("pdf extraction failed", "path", path, "error", err)
		return ""
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, MaxTextBytes)); err != nil {
		logger.Warn("pdf extraction failed", "path", path, "error", err)
		return ""
	}
	return buf.String()
}
