package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionError_CarriesPathAndCause(t *testing.T) {
	// Given: a parser failure for a specific file
	cause := errors.New("malformed xref table")
	err := NewExtractionError("/docs/broken.pdf", cause)

	// Then: path and cause survive wrapping
	assert.Contains(t, err.Error(), "/docs/broken.pdf")
	assert.Equal(t, cause, errors.Unwrap(err))

	// And: errors.As finds it through further wrapping
	wrapped := fmt.Errorf("indexing batch: %w", err)
	var ee *ExtractionError
	require.True(t, errors.As(wrapped, &ee))
	assert.Equal(t, "/docs/broken.pdf", ee.Path)
}

func TestDimensionMismatchError_MentionsBothDimensions(t *testing.T) {
	err := &DimensionMismatchError{Expected: 768, Actual: 384}

	assert.Contains(t, err.Error(), "768")
	assert.Contains(t, err.Error(), "384")
	assert.Contains(t, err.Error(), "rebuild")
}

func TestDimensionMismatchError_IsMatchesAnyInstance(t *testing.T) {
	err := fmt.Errorf("add chunk: %w", &DimensionMismatchError{Expected: 768, Actual: 384})

	assert.True(t, errors.Is(err, &DimensionMismatchError{}))
}

func TestIndexCorruptionError_WithAndWithoutCause(t *testing.T) {
	withCause := &IndexCorruptionError{Component: "vector", Detail: "graph import failed", Cause: errors.New("unexpected EOF")}
	assert.Contains(t, withCause.Error(), "vector")
	assert.Contains(t, withCause.Error(), "unexpected EOF")

	noCause := &IndexCorruptionError{Component: "bm25", Detail: "3 chunks missing"}
	assert.Contains(t, noCause.Error(), "3 chunks missing")
	assert.NoError(t, errors.Unwrap(noCause))
}

func TestQueryTimeoutError_ReportsBudget(t *testing.T) {
	err := &QueryTimeoutError{Query: "raft consensus", Timeout: 5 * time.Second}

	assert.Contains(t, err.Error(), "raft consensus")
	assert.Contains(t, err.Error(), "5s")
}
