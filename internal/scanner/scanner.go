// Package scanner walks a corpus directory and streams the files eligible
// for indexing: include/exclude pattern filtering, an extension filter
// supplied by the extractor registry, a size cap, and symlink skipping.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/heresalord/localsearchengine/internal/ignore"
)

// DefaultMaxFileSize caps files considered for indexing (50MB).
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// dataDirName is the index data directory, never scanned.
const dataDirName = ".localsearch"

// FileInfo describes one scannable file.
type FileInfo struct {
	// Path is slash-separated and relative to the scan root.
	Path    string
	AbsPath string
	Size    int64
	ModTime time.Time
}

// ScanResult carries either a file or a non-fatal error.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// Options configures a Scanner.
type Options struct {
	// Include restricts scanning to matching paths when non-empty.
	Include []string

	// Exclude patterns, in addition to the data and VCS directories
	// which are always excluded.
	Exclude []string

	// MaxFileSize skips larger files. Defaults to DefaultMaxFileSize.
	MaxFileSize int64

	// FileFilter, when set, restricts results to paths it accepts.
	// Typically backed by the extractor registry's extension check.
	FileFilter func(relPath string) bool
}

// Scanner walks directories applying the configured filters.
type Scanner struct {
	opts     Options
	includes *ignore.Matcher
	excludes *ignore.Matcher
}

// New creates a scanner with the given options.
func New(opts Options) *Scanner {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	excludes := ignore.New(opts.Exclude...)
	excludes.Add(dataDirName + "/")
	excludes.Add(".git/")

	var includes *ignore.Matcher
	if len(opts.Include) > 0 {
		includes = ignore.New(opts.Include...)
	}

	return &Scanner{
		opts:     opts,
		includes: includes,
		excludes: excludes,
	}
}

// Scan walks root and streams eligible files. The channel is closed when
// the walk finishes or the context is cancelled. Unreadable entries are
// reported as ScanResult errors, not walk failures.
func (s *Scanner) Scan(ctx context.Context, root string) (<-chan ScanResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	if info, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	results := make(chan ScanResult, 100)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, results)
	}()
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			results <- ScanResult{Error: fmt.Errorf("access %s: %w", path, err)}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if s.excludes.Match(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.eligible(relPath) {
			return nil
		}

		// Lstat-based entry info: symlinks are skipped, not followed.
		info, infoErr := d.Info()
		if infoErr != nil {
			results <- ScanResult{Error: fmt.Errorf("stat %s: %w", relPath, infoErr)}
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if info.Size() > s.opts.MaxFileSize {
			slog.Debug("skipping oversized file",
				slog.String("path", relPath),
				slog.Int64("size", info.Size()))
			return nil
		}

		results <- ScanResult{File: &FileInfo{
			Path:    relPath,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		results <- ScanResult{Error: err}
	}
}

// eligible applies exclude, include and file-type filters to a file path.
func (s *Scanner) eligible(relPath string) bool {
	if s.excludes.Match(relPath, false) {
		return false
	}
	if s.includes != nil && !s.includes.Match(relPath, false) {
		return false
	}
	if s.opts.FileFilter != nil && !s.opts.FileFilter(relPath) {
		return false
	}
	return true
}
