package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	t.Run("zero values get defaults", func(t *testing.T) {
		opts := Options{}.WithDefaults()

		assert.Equal(t, 500*time.Millisecond, opts.DebounceWindow)
		assert.Equal(t, 5*time.Second, opts.PollInterval)
		assert.Equal(t, 1000, opts.EventBufferSize)
	})

	t.Run("explicit values preserved", func(t *testing.T) {
		opts := Options{
			DebounceWindow:  50 * time.Millisecond,
			PollInterval:    time.Second,
			EventBufferSize: 10,
			ExcludePatterns: []string{"*.log"},
		}.WithDefaults()

		assert.Equal(t, 50*time.Millisecond, opts.DebounceWindow)
		assert.Equal(t, time.Second, opts.PollInterval)
		assert.Equal(t, 10, opts.EventBufferSize)
		assert.Equal(t, []string{"*.log"}, opts.ExcludePatterns)
	})
}
