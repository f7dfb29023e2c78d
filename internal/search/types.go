// Package search implements hybrid retrieval: BM25 keyword search and HNSW
// semantic search run in parallel, their scores are normalized and fused
// with a weighted sum, and results below the score floor are dropped.
package search

import (
	"fmt"
	"time"

	"github.com/heresalord/localsearchengine/internal/errors"
)

// Mode selects which signals contribute to a query.
type Mode string

const (
	// ModeHybrid fuses keyword and semantic scores.
	ModeHybrid Mode = "hybrid"
	// ModeSemantic uses only vector similarity.
	ModeSemantic Mode = "semantic"
)

// Status reports whether a response covers the full query work.
type Status string

const (
	// StatusComplete means both signals ran to completion.
	StatusComplete Status = "complete"
	// StatusDegraded means the time budget expired and the response holds
	// whatever was computed before the deadline.
	StatusDegraded Status = "degraded"
)

// Options configures a single query.
type Options struct {
	// Mode defaults to ModeHybrid.
	Mode Mode

	// Limit is the maximum number of results. Zero means the engine default.
	Limit int

	// SemanticWeight and KeywordWeight control fusion. When both are zero
	// the engine defaults apply. Non-equal sums are normalized to 1.
	SemanticWeight float64
	KeywordWeight  float64

	// MinScore drops fused results below this threshold. Nil means the
	// engine default; point at 0 to disable filtering.
	MinScore *float64

	// CandidatePool is how many candidates each signal contributes before
	// fusion. Zero means the engine default.
	CandidatePool int
}

// Validate rejects out-of-range option values.
func (o Options) Validate() error {
	switch o.Mode {
	case "", ModeHybrid, ModeSemantic:
	default:
		return errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("unknown search mode %q", o.Mode), nil)
	}
	if o.Limit < 0 {
		return errors.New(errors.ErrCodeInvalidQuery, "limit must be positive", nil)
	}
	if o.SemanticWeight < 0 || o.KeywordWeight < 0 {
		return errors.New(errors.ErrCodeInvalidQuery, "weights must be non-negative", nil)
	}
	if o.MinScore != nil && (*o.MinScore < 0 || *o.MinScore > 1) {
		return errors.New(errors.ErrCodeInvalidQuery, "min score must be within [0,1]", nil)
	}
	if o.CandidatePool < 0 {
		return errors.New(errors.ErrCodeInvalidQuery, "candidate pool must be positive", nil)
	}
	return nil
}

// Result is one scored chunk with its document context.
type Result struct {
	ChunkID string `json:"chunk_id"`
	DocPath string `json:"doc_path"`

	// Score is the fused score in [0,1].
	Score float64 `json:"score"`
	// SemanticScore is the normalized vector similarity (0 when the chunk
	// was found only by keyword search, or in keyword-less modes).
	SemanticScore float64 `json:"semantic_score"`
	// KeywordScore is the max-normalized BM25 score within this query's
	// candidate set.
	KeywordScore float64 `json:"keyword_score"`

	Snippet     string `json:"snippet"`
	Content     string `json:"content"`
	Seq         int    `json:"seq"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// Response is the outcome of one query.
type Response struct {
	Results []*Result `json:"results"`
	Status  Status    `json:"status"`

	// Timeout is set when Status is StatusDegraded because the query's
	// time budget expired.
	Timeout *errors.QueryTimeoutError `json:"timeout,omitempty"`

	// Elapsed is the total query duration.
	Elapsed time.Duration `json:"elapsed"`
}

// Config holds engine-level defaults, typically from SearchConfig.
type Config struct {
	SemanticWeight float64
	KeywordWeight  float64
	MinScore       float64
	CandidatePool  int
	MaxResults     int
	Timeout        time.Duration
}

// DefaultConfig returns the standard fusion parameters.
func DefaultConfig() Config {
	return Config{
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,
		MinScore:       0.3,
		CandidatePool:  50,
		MaxResults:     10,
		Timeout:        5 * time.Second,
	}
}

// Stats summarizes the engine's index sizes for `status`.
type Stats struct {
	Documents   int
	Chunks      int
	VectorCount int
	TermCount   int
}
