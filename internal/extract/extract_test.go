package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heresalord/localsearchengine/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistry_DispatchByExtension(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		path      string
		supported bool
	}{
		{"notes.txt", true},
		{"README.md", true},
		{"guide.markdown", true},
		{"page.html", true},
		{"page.htm", true},
		{"manual.pdf", true},
		{"PHOTO.JPG", false},
		{"binary.exe", false},
		{"noextension", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.supported, r.Supported(tt.path), tt.path)
	}
}

func TestRegistry_ExtensionCaseInsensitive(t *testing.T) {
	r := NewRegistry()

	// Extension matching ignores case
	assert.True(t, r.Supported("NOTES.TXT"))
	assert.True(t, r.Supported("Page.HTML"))
}

func TestRegistry_UnsupportedExtension(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract(context.Background(), "image.png")

	var extErr *errors.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "image.png", extErr.Path)
}

func TestRegistry_ExtractionFailureWrapped(t *testing.T) {
	r := NewRegistry()

	// A missing file fails inside the loader but surfaces as an
	// extraction error carrying the path
	missing := filepath.Join(t.TempDir(), "gone.txt")
	_, err := r.Extract(context.Background(), missing)

	var extErr *errors.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, missing, extErr.Path)
}

// stubRecognizer extracts nothing but recognizes text in images.
type stubRecognizer struct {
	recognized string
}

func (s *stubRecognizer) Extract(ctx context.Context, path string) (string, error) {
	return "", nil
}

func (s *stubRecognizer) Supports(ext string) bool { return ext == ".tiff" }

func (s *stubRecognizer) RecognizeText(ctx context.Context, path string) (string, error) {
	return s.recognized, nil
}

func TestRegistry_ImageTextFallback(t *testing.T) {
	// Given a loader whose primary extraction yields no text but which
	// can recognize text in images
	r := NewRegistry()
	r.RegisterExt(".tiff", &stubRecognizer{recognized: "scanned page text"})

	// When extracting
	text, err := r.Extract(context.Background(), "scan.tiff")

	// Then the recognized text is used
	require.NoError(t, err)
	assert.Equal(t, "scanned page text", text)
}

func TestTextLoader_Extract(t *testing.T) {
	dir := t.TempDir()
	loader := NewTextLoader()

	t.Run("plain text", func(t *testing.T) {
		path := writeFile(t, dir, "a.txt", "hello\nworld\n")
		text, err := loader.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "hello\nworld\n", text)
	})

	t.Run("normalizes CRLF", func(t *testing.T) {
		path := writeFile(t, dir, "b.txt", "line one\r\nline two\r\n")
		text, err := loader.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "line one\nline two\n", text)
	})

	t.Run("strips UTF-8 BOM", func(t *testing.T) {
		path := writeFile(t, dir, "c.md", "\xEF\xBB\xBF# Title")
		text, err := loader.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "# Title", text)
	})

	t.Run("rejects invalid UTF-8", func(t *testing.T) {
		path := writeFile(t, dir, "d.txt", "ok\xff\xfebad")
		_, err := loader.Extract(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("markdown markup preserved", func(t *testing.T) {
		path := writeFile(t, dir, "e.md", "# Heading\n\nSome **bold** text")
		text, err := loader.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Contains(t, text, "Heading")
		assert.Contains(t, text, "bold")
	})
}

func TestHTMLLoader_Extract(t *testing.T) {
	dir := t.TempDir()
	loader := NewHTMLLoader()

	html := `<!DOCTYPE html>
<html>
<head>
  <title>Install Guide</title>
  <style>body { color: red; }</style>
  <script>console.log("tracking");</script>
</head>
<body>
  <nav><a href="/">Home</a></nav>
  <h1>Installation</h1>
  <p>Download the binary and put it on your PATH.</p>
  <footer>Copyright 2026</footer>
</body>
</html>`

	path := writeFile(t, dir, "guide.html", html)
	text, err := loader.Extract(context.Background(), path)
	require.NoError(t, err)

	// Title and visible content are kept
	assert.Contains(t, text, "Install Guide")
	assert.Contains(t, text, "Installation")
	assert.Contains(t, text, "Download the binary")

	// Script, style, and boilerplate are stripped
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "Home")
}

func TestHTMLLoader_BodyWithoutBlocks(t *testing.T) {
	dir := t.TempDir()
	loader := NewHTMLLoader()

	path := writeFile(t, dir, "bare.html", "<html><body>just some bare text</body></html>")
	text, err := loader.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "just some bare text", text)
}

func TestPDFLoader_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	loader := NewPDFLoader()

	// A file with a .pdf extension that is not a PDF fails cleanly
	path := writeFile(t, dir, "fake.pdf", "this is not a pdf")
	_, err := loader.Extract(context.Background(), path)
	assert.Error(t, err)
}

func TestLoaders_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTextLoader().Extract(ctx, "any.txt")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewHTMLLoader().Extract(ctx, "any.html")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewPDFLoader().Extract(ctx, "any.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}
