package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects file changes by periodically scanning the watched
// tree and diffing mod times and sizes against the previous scan. It is the
// fallback for environments where fsnotify cannot be created.
type PollingWatcher struct {
	interval time.Duration
	snapshot map[string]fileState
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	mu       sync.Mutex
	stopped  bool
	rootPath string
}

type fileState struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a new polling watcher with the given interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start begins polling the given directory. The first scan establishes the
// baseline and emits no events.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.rootPath = absPath

	baseline, err := p.scan()
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	p.mu.Lock()
	p.snapshot = baseline
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick scans once and emits events for every difference from the previous
// snapshot.
func (p *PollingWatcher) tick() {
	current, err := p.scan()
	if err != nil {
		select {
		case p.errors <- err:
		default:
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for path, state := range current {
		prev, existed := p.snapshot[path]
		switch {
		case !existed:
			p.emit(FileEvent{Path: path, Operation: OpCreate, IsDir: state.isDir, Timestamp: now})
		case !prev.modTime.Equal(state.modTime) || prev.size != state.size:
			p.emit(FileEvent{Path: path, Operation: OpModify, IsDir: state.isDir, Timestamp: now})
		}
	}
	for path, prev := range p.snapshot {
		if _, exists := current[path]; !exists {
			p.emit(FileEvent{Path: path, Operation: OpDelete, IsDir: prev.isDir, Timestamp: now})
		}
	}

	p.snapshot = current
}

// scan walks the tree and records per-path state. Unreadable entries are
// skipped; they will surface as creates once readable again.
func (p *PollingWatcher) scan() (map[string]fileState, error) {
	result := make(map[string]fileState)

	err := filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		relPath, err := filepath.Rel(p.rootPath, path)
		if err != nil || relPath == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		result[filepath.ToSlash(relPath)] = fileState{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", p.rootPath, err)
	}
	return result, nil
}

// emit sends an event without blocking. Must be called with the lock held.
func (p *PollingWatcher) emit(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()),
		)
	}
}

// Stop stops the polling watcher. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
