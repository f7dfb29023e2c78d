package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: Error wrapping preserves original error
func TestEngineError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with EngineError
	engErr := New(ErrCodeFileNotFound, "file not found: test.txt", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, engErr)
	assert.Equal(t, originalErr, errors.Unwrap(engErr))
	assert.True(t, errors.Is(engErr, originalErr))
}

func TestEngineError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "extraction error",
			code:     ErrCodeExtractionFailed,
			message:  "report.pdf could not be parsed",
			expected: "[ERR_206_EXTRACTION_FAILED] report.pdf could not be parsed",
		},
		{
			name:     "query timeout",
			code:     ErrCodeQueryTimeout,
			message:  "query exceeded deadline",
			expected: "[ERR_303_QUERY_TIMEOUT] query exceeded deadline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestEngineError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeFileNotFound, "file A not found", nil)
	err2 := New(ErrCodeFileNotFound, "file B not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestEngineError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestEngineError_WithDetail_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeFileNotFound, "file not found", nil)

	// When: adding details
	err = err.WithDetail("path", "/docs/report.md")
	err = err.WithDetail("size", "1024")

	// Then: details are available
	assert.Equal(t, "/docs/report.md", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestEngineError_CategoryDerivedFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeExtractionFailed, CategoryIO},
		{ErrCodeQueryTimeout, CategoryNetwork},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeEmbeddingFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestIsRetryable_NetworkCodesOnly(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeNetworkTimeout, "timeout", nil)))
	assert.True(t, IsRetryable(New(ErrCodeNetworkUnavailable, "down", nil)))
	assert.False(t, IsRetryable(New(ErrCodeFileNotFound, "gone", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal_CorruptionAndDimensionMismatch(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "bad index", nil)))
	assert.True(t, IsFatal(New(ErrCodeDimensionMismatch, "384 vs 768", nil)))
	assert.False(t, IsFatal(New(ErrCodeInvalidQuery, "empty", nil)))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
