package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates a file with parent directories.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// collectPaths drains a scan and returns the relative paths found.
func collectPaths(t *testing.T, s *Scanner, root string) []string {
	t.Helper()
	results, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	var paths []string
	for result := range results {
		require.NoError(t, result.Error)
		paths = append(paths, result.File.Path)
	}
	return paths
}

func TestScanner_FindsFilesRecursively(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "alpha")
	writeFile(t, dir, "docs/b.md", "beta")
	writeFile(t, dir, "docs/deep/c.txt", "gamma")

	paths := collectPaths(t, New(Options{}), dir)

	assert.ElementsMatch(t, []string{"a.md", "docs/b.md", "docs/deep/c.txt"}, paths)
}

func TestScanner_ReportsSizeAndModTime(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "12345")

	results, err := New(Options{}).Scan(context.Background(), dir)
	require.NoError(t, err)

	result := <-results
	require.NoError(t, result.Error)
	assert.Equal(t, int64(5), result.File.Size)
	assert.WithinDuration(t, time.Now(), result.File.ModTime, time.Minute)
	assert.Equal(t, filepath.Join(dir, "a.md"), result.File.AbsPath)
}

func TestScanner_ExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.md", "x")
	writeFile(t, dir, "skip.log", "x")
	writeFile(t, dir, "drafts/ignored.md", "x")

	s := New(Options{Exclude: []string{"*.log", "drafts/"}})

	assert.ElementsMatch(t, []string{"keep.md"}, collectPaths(t, s, dir))
}

func TestScanner_AlwaysSkipsDataAndGitDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", "x")
	writeFile(t, dir, ".localsearch/metadata.db", "x")
	writeFile(t, dir, ".git/config", "x")

	assert.ElementsMatch(t, []string{"doc.md"}, collectPaths(t, New(Options{}), dir))
}

func TestScanner_IncludePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes/a.md", "x")
	writeFile(t, dir, "other/b.md", "x")

	s := New(Options{Include: []string{"notes/**"}})

	assert.ElementsMatch(t, []string{"notes/a.md"}, collectPaths(t, s, dir))
}

func TestScanner_FileFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", "x")
	writeFile(t, dir, "image.png", "x")

	s := New(Options{FileFilter: func(relPath string) bool {
		return strings.HasSuffix(relPath, ".md")
	}})

	assert.ElementsMatch(t, []string{"doc.md"}, collectPaths(t, s, dir))
}

func TestScanner_SkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.md", "ok")
	writeFile(t, dir, "big.md", strings.Repeat("a", 100))

	s := New(Options{MaxFileSize: 50})

	assert.ElementsMatch(t, []string{"small.md"}, collectPaths(t, s, dir))
}

func TestScanner_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "real.md", "x")
	if err := os.Symlink(filepath.Join(dir, "real.md"), filepath.Join(dir, "link.md")); err != nil {
		t.Skip("symlinks not supported on this platform")
	}

	assert.ElementsMatch(t, []string{"real.md"}, collectPaths(t, New(Options{}), dir))
}

func TestScanner_RootMustBeDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.md", "x")

	_, err := New(Options{}).Scan(context.Background(), filepath.Join(dir, "file.md"))
	require.Error(t, err)

	_, err = New(Options{}).Scan(context.Background(), filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestScanner_CancelledContextStops(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, dir, filepath.Join("d", "f"+string(rune('a'+i))+".md"), "x")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := New(Options{}).Scan(ctx, dir)
	require.NoError(t, err)

	count := 0
	for range results {
		count++
	}
	assert.Zero(t, count)
}
