package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"unicode/utf8"
)

// TextLoader handles plain text and Markdown files. Markdown markup is
// kept as-is: headings and emphasis markers are harmless to the
// tokenizer and preserve searchable text.
type TextLoader struct{}

var _ Loader = (*TextLoader)(nil)

// utf8BOM is stripped when present so it never leaks into chunk text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewTextLoader creates a plain text loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Extract reads the file and normalizes line endings to LF.
func (l *TextLoader) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8")
	}

	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return string(data), nil
}

// Supports reports the extensions handled by this loader.
func (l *TextLoader) Supports(ext string) bool {
	switch ext {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}
