package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events to prevent index thrashing.
// Each path carries its own timer: an event is released once its path has
// been quiet for the full window, so a burst of saves to one file does not
// delay events for unrelated files. Events for the same path within the
// window are merged according to these rules:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
type Debouncer struct {
	window  time.Duration
	pending map[string]*pendingEvent
	mu      sync.Mutex
	output  chan []FileEvent
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation // first operation seen, drives coalescing
	timer   *time.Timer
}

// NewDebouncer creates a new debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add adds an event to be debounced. Events for the same path are coalesced
// and the path's timer is reset to a full window.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path
	if existing, ok := d.pending[path]; ok {
		coalesced := coalesce(existing, event)
		if coalesced == nil {
			// Events cancelled each other out (CREATE + DELETE)
			existing.timer.Stop()
			delete(d.pending, path)
			return
		}
		existing.event = *coalesced
		existing.timer.Reset(d.window)
		return
	}

	pe := &pendingEvent{
		event:   event,
		firstOp: event.Operation,
	}
	pe.timer = time.AfterFunc(d.window, func() {
		d.flushPath(path)
	})
	d.pending[path] = pe
}

// coalesce merges two events according to the coalescing rules.
// Returns nil if the events cancel each other out.
func coalesce(existing *pendingEvent, next FileEvent) *FileEvent {
	switch existing.firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			// CREATE + MODIFY = CREATE (keep original)
			return &existing.event
		case OpDelete:
			// CREATE + DELETE = nothing
			return nil
		default:
			return &next
		}

	case OpModify:
		// MODIFY + MODIFY keeps the latest; MODIFY + DELETE is a delete
		return &next

	case OpDelete:
		if next.Operation == OpCreate {
			// DELETE + CREATE = MODIFY (file was replaced)
			result := next
			result.Operation = OpModify
			return &result
		}
		return &next

	default:
		return &next
	}
}

// flushPath emits the pending event for a single path whose timer fired.
func (d *Debouncer) flushPath(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	pe, ok := d.pending[path]
	if !ok {
		return
	}
	delete(d.pending, path)

	// Non-blocking send
	select {
	case d.output <- []FileEvent{pe.event}:
	default:
		slog.Warn("debouncer output full, dropping event",
			slog.String("path", pe.event.Path),
			slog.String("op", pe.event.Operation.String()),
		)
	}
}

// Output returns the channel of debounced events. Each batch holds the
// events whose quiet windows expired.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Pending returns the number of paths currently waiting out their window.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop stops the debouncer and closes the output channel.
// Pending events are discarded. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.stopped = true
	for _, pe := range d.pending {
		pe.timer.Stop()
	}
	d.pending = make(map[string]*pendingEvent)
	close(d.output)
}
