// Package index provides cross-store consistency checking. The metadata
// store is the source of truth; the BM25 and vector indexes are derived
// from it and must carry exactly the same chunk-ID set.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heresalord/localsearchengine/internal/errors"
	"github.com/heresalord/localsearchengine/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanBM25 indicates a BM25 entry without matching metadata.
	InconsistencyOrphanBM25 InconsistencyType = iota
	// InconsistencyOrphanVector indicates a vector entry without matching metadata.
	InconsistencyOrphanVector
	// InconsistencyMissingBM25 indicates a metadata chunk missing from BM25.
	InconsistencyMissingBM25
	// InconsistencyMissingVector indicates a metadata chunk missing from the vector store.
	InconsistencyMissingVector
)

// String returns a short identifier for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanBM25:
		return "orphan_bm25"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingBM25:
		return "missing_bm25"
	case InconsistencyMissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected cross-store issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of metadata chunks verified.
	Checked int
	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// Consistent reports whether all three stores agree.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// Err converts a failed check into an operator-visible corruption error.
// Returns nil for a consistent result.
func (r *CheckResult) Err() error {
	if r.Consistent() {
		return nil
	}
	counts := make(map[InconsistencyType]int)
	for _, issue := range r.Inconsistencies {
		counts[issue.Type]++
	}
	return &errors.IndexCorruptionError{
		Component: "index",
		Detail: fmt.Sprintf(
			"chunk sets diverge: %d orphaned in bm25, %d orphaned in vectors, %d missing from bm25, %d missing from vectors",
			counts[InconsistencyOrphanBM25], counts[InconsistencyOrphanVector],
			counts[InconsistencyMissingBM25], counts[InconsistencyMissingVector]),
	}
}

// ConsistencyChecker validates that the BM25 and vector indexes hold
// exactly the chunk set recorded in metadata.
type ConsistencyChecker struct {
	metadata store.MetadataStore
	bm25     store.BM25Index
	vectors  store.VectorStore
}

// NewConsistencyChecker creates a checker over the given stores.
func NewConsistencyChecker(metadata store.MetadataStore, bm25 store.BM25Index, vectors store.VectorStore) *ConsistencyChecker {
	return &ConsistencyChecker{
		metadata: metadata,
		bm25:     bm25,
		vectors:  vectors,
	}
}

// Check compares the chunk-ID sets of all three stores.
// O(n) in the total number of entries.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	var issues []Inconsistency

	metaIDs, err := c.metadata.AllChunkIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list metadata chunk ids: %w", err)
	}
	metaSet := make(map[string]bool, len(metaIDs))
	for _, id := range metaIDs {
		metaSet[id] = true
	}

	bm25IDs, err := c.bm25.AllIDs()
	if err != nil {
		return nil, fmt.Errorf("list bm25 chunk ids: %w", err)
	}
	vectorIDs := c.vectors.AllIDs()

	bm25Set := make(map[string]bool, len(bm25IDs))
	for _, id := range bm25IDs {
		bm25Set[id] = true
		if !metaSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanBM25, ChunkID: id})
		}
	}
	vectorSet := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		vectorSet[id] = true
		if !metaSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanVector, ChunkID: id})
		}
	}

	for _, id := range metaIDs {
		if !bm25Set[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingBM25, ChunkID: id})
		}
		if !vectorSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingVector, ChunkID: id})
		}
	}

	return &CheckResult{
		Checked:         len(metaIDs),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair removes orphaned index entries. Missing entries cannot be repaired
// in place and are reported; a full rebuild is the remedy.
// Returns the number of entries still missing after the repair.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) (int, error) {
	var orphanBM25, orphanVector []string
	missing := 0

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanBM25:
			orphanBM25 = append(orphanBM25, issue.ChunkID)
		case InconsistencyOrphanVector:
			orphanVector = append(orphanVector, issue.ChunkID)
		case InconsistencyMissingBM25, InconsistencyMissingVector:
			missing++
		}
	}

	if len(orphanBM25) > 0 {
		if err := c.bm25.Delete(ctx, orphanBM25); err != nil {
			return missing, fmt.Errorf("delete orphan bm25 entries: %w", err)
		}
		slog.Info("deleted orphan lexical entries", slog.Int("count", len(orphanBM25)))
	}
	if len(orphanVector) > 0 {
		if err := c.vectors.Delete(ctx, orphanVector); err != nil {
			return missing, fmt.Errorf("delete orphan vector entries: %w", err)
		}
		slog.Info("deleted orphan vector entries", slog.Int("count", len(orphanVector)))
	}

	if missing > 0 {
		slog.Warn("index has missing entries, run 'localsearch index --force' to rebuild",
			slog.Int("missing_count", missing))
	}
	return missing, nil
}

// QuickCheck only compares entry counts across stores. Cheap enough to run
// on every startup and for `status`.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	_, chunkCount, err := c.metadata.Counts(ctx)
	if err != nil {
		return false, fmt.Errorf("read metadata counts: %w", err)
	}

	bm25Count := 0
	if stats := c.bm25.Stats(); stats != nil {
		bm25Count = stats.ChunkCount
	}
	vectorCount := c.vectors.Count()

	consistent := chunkCount == bm25Count && chunkCount == vectorCount
	if !consistent {
		slog.Debug("index counts mismatch",
			slog.Int("metadata", chunkCount),
			slog.Int("bm25", bm25Count),
			slog.Int("vector", vectorCount))
	}
	return consistent, nil
}
