package watcher

import (
	"context"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed away.
	// The indexer treats this like a delete; the new name arrives
	// as a separate create event.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a single file system change.
type FileEvent struct {
	// Path is the path relative to the watched root, slash-separated.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir indicates if the event is for a directory.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Watcher defines the interface for file system watching. Events are
// delivered as batches because debouncing can release several paths at once.
type Watcher interface {
	// Start begins watching the given directory recursively. It blocks
	// until Stop is called or the context is cancelled.
	Start(ctx context.Context, path string) error

	// Stop stops the watcher and releases resources.
	// Safe to call multiple times.
	Stop() error

	// Events returns the channel of debounced event batches.
	// The channel is closed when the watcher stops.
	Events() <-chan []FileEvent

	// Errors returns a channel of watcher errors.
	// Non-fatal errors are sent here; the watcher continues running.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the per-path quiet period before an event is
	// emitted. Default: 500ms.
	DebounceWindow time.Duration

	// PollInterval is the scan interval for polling mode (fallback).
	// Default: 5s.
	PollInterval time.Duration

	// EventBufferSize is the size of the event channel buffer.
	// Default: 1000.
	EventBufferSize int

	// ExcludePatterns are glob patterns for paths to ignore,
	// in addition to the data and VCS directories which are
	// always ignored.
	ExcludePatterns []string

	// FileFilter, when set, restricts file events to paths it accepts.
	// Directory events are not filtered. Typically backed by the
	// extractor registry's extension check.
	FileFilter func(relPath string) bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
