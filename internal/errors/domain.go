package errors

import (
	"fmt"
	"time"
)

// ExtractionError reports a document whose text could not be extracted.
// The indexing pipeline logs these and moves on; they never abort a batch.
type ExtractionError struct {
	Path  string
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NewExtractionError wraps an extraction failure for the given file.
func NewExtractionError(path string, cause error) *ExtractionError {
	return &ExtractionError{Path: path, Cause: cause}
}

// DimensionMismatchError reports a vector whose dimension does not match
// the index. This usually means the embedding model changed; the index
// must be rebuilt explicitly, never silently.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: index expects %d, got %d (embedding model changed? rebuild the index)", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Is(target error) bool {
	_, ok := target.(*DimensionMismatchError)
	return ok
}

// IndexCorruptionError reports persisted index state that failed
// validation on load or a cross-index consistency violation.
type IndexCorruptionError struct {
	Component string
	Detail    string
	Cause     error
}

func (e *IndexCorruptionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("index corruption in %s: %s: %v", e.Component, e.Detail, e.Cause)
	}
	return fmt.Sprintf("index corruption in %s: %s", e.Component, e.Detail)
}

func (e *IndexCorruptionError) Unwrap() error {
	return e.Cause
}

// QueryTimeoutError reports a query that exceeded its time budget.
// Callers receive whatever partial results were available plus this error
// so the degradation is visible, not silent.
type QueryTimeoutError struct {
	Query   string
	Timeout time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("query %q timed out after %s", e.Query, e.Timeout)
}
