// Package watcher provides real-time file system watching with per-path
// debouncing and exclude-pattern filtering.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: polling for environments where fsnotify fails (network mounts, containers)
//
// Rapid events for the same path are coalesced within a quiet window so that
// editor save sequences and bulk copies reach the indexer as a single event
// per file. Paths are filtered against configured exclude patterns, and an
// optional file filter restricts events to indexable document types.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.Options{
//	    ExcludePatterns: cfg.Paths.Exclude,
//	})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx, "/path/to/corpus")
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        switch event.Operation {
//	        case watcher.OpCreate, watcher.OpModify:
//	            // Reindex the file
//	        case watcher.OpDelete:
//	            // Remove the file from the index
//	        }
//	    }
//	}
package watcher
