package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/heresalord/localsearchengine/internal/errors"
)

// MemoryBM25Index is an in-memory inverted index with BM25 ranking and
// gob persistence. Posting lists are maintained incrementally: indexing
// and deleting a chunk adjust term statistics exactly once, so document
// frequencies never drift under repeated updates.
type MemoryBM25Index struct {
	mu        sync.RWMutex
	config    BM25Config
	tokenizer *Tokenizer

	postings  map[string]map[string]int // term -> chunkID -> tf
	chunkTf   map[string]map[string]int // chunkID -> term -> tf (for removal)
	chunkLens map[string]int            // chunkID -> token count
	totalLen  int64

	path   string
	closed bool
}

// bm25Snapshot is the gob-persisted form of the index. Posting lists are
// rebuilt from the per-chunk term frequencies on load.
type bm25Snapshot struct {
	Config    BM25Config
	ChunkTf   map[string]map[string]int
	ChunkLens map[string]int
	TotalLen  int64
}

// NewMemoryBM25Index creates a BM25 index. If path is non-empty and a
// snapshot exists there, it is loaded; a corrupted snapshot is cleared
// and the index starts empty (the consistency check forces a rebuild).
func NewMemoryBM25Index(path string, config BM25Config) (*MemoryBM25Index, error) {
	if config.K1 == 0 {
		config.K1 = 1.5
	}
	if config.B == 0 {
		config.B = 0.75
	}
	if config.MinTokenLength == 0 {
		config.MinTokenLength = 3
	}

	idx := &MemoryBM25Index{
		config:    config,
		tokenizer: NewTokenizer(config.MinTokenLength, config.StopWords),
		postings:  make(map[string]map[string]int),
		chunkTf:   make(map[string]map[string]int),
		chunkLens: make(map[string]int),
		path:      path,
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if loadErr := idx.Load(path); loadErr != nil {
				slog.Warn("bm25_index_corrupted",
					slog.String("path", path),
					slog.String("error", loadErr.Error()))
				if removeErr := os.Remove(path); removeErr != nil {
					return nil, fmt.Errorf("BM25 index corrupted at %s and cannot remove: %w", path, removeErr)
				}
				slog.Info("bm25_index_cleared",
					slog.String("path", path),
					slog.String("reason", "corruption detected, reindex required"))
				idx.reset()
			}
		}
	}

	return idx, nil
}

func (m *MemoryBM25Index) reset() {
	m.postings = make(map[string]map[string]int)
	m.chunkTf = make(map[string]map[string]int)
	m.chunkLens = make(map[string]int)
	m.totalLen = 0
}

// Index adds or replaces chunks in the index.
func (m *MemoryBM25Index) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Replace semantics: remove old statistics before re-adding.
		if _, exists := m.chunkTf[chunk.ID]; exists {
			m.removeLocked(chunk.ID)
		}

		tokens := m.tokenizer.Tokenize(chunk.Content)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}

		m.chunkTf[chunk.ID] = tf
		m.chunkLens[chunk.ID] = len(tokens)
		m.totalLen += int64(len(tokens))

		for term, count := range tf {
			posting := m.postings[term]
			if posting == nil {
				posting = make(map[string]int)
				m.postings[term] = posting
			}
			posting[chunk.ID] = count
		}
	}

	return nil
}

// Delete removes chunks from the index. Deleting an unknown ID is a
// no-op, so a double delete never corrupts term statistics.
func (m *MemoryBM25Index) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	for _, id := range chunkIDs {
		m.removeLocked(id)
	}
	return nil
}

// removeLocked removes a single chunk's statistics. Caller holds the lock.
func (m *MemoryBM25Index) removeLocked(id string) {
	tf, exists := m.chunkTf[id]
	if !exists {
		return
	}

	for term := range tf {
		if posting, ok := m.postings[term]; ok {
			delete(posting, id)
			if len(posting) == 0 {
				delete(m.postings, term)
			}
		}
	}

	m.totalLen -= int64(m.chunkLens[id])
	delete(m.chunkLens, id)
	delete(m.chunkTf, id)
}

// Search returns up to limit chunks matching the query, scored by BM25.
// Results are sorted by score descending, chunk ID ascending on ties.
func (m *MemoryBM25Index) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return []*BM25Result{}, nil
	}

	terms := uniqueTerms(m.tokenizer.Tokenize(query))
	if len(terms) == 0 {
		return []*BM25Result{}, nil
	}

	// Candidates: every chunk containing at least one query term.
	candidates := make(map[string][]string) // chunkID -> matched terms
	for _, term := range terms {
		for id := range m.postings[term] {
			candidates[id] = append(candidates[id], term)
		}
	}
	if len(candidates) == 0 {
		return []*BM25Result{}, nil
	}

	results := make([]*BM25Result, 0, len(candidates))
	for id, matched := range candidates {
		sort.Strings(matched)
		results = append(results, &BM25Result{
			ChunkID:      id,
			Score:        m.scoreLocked(terms, id),
			MatchedTerms: matched,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Score computes the raw BM25 score of a single chunk for the query.
func (m *MemoryBM25Index) Score(query string, chunkID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0
	}
	terms := uniqueTerms(m.tokenizer.Tokenize(query))
	return m.scoreLocked(terms, chunkID)
}

// scoreLocked computes the BM25 score for one chunk. Caller holds at
// least a read lock.
//
//	score = sum over terms of IDF(t) * (tf*(k1+1)) / (tf + k1*(1 - b + b*len/avgLen))
//	IDF(t) = ln(1 + (N - df + 0.5) / (df + 0.5))
func (m *MemoryBM25Index) scoreLocked(terms []string, chunkID string) float64 {
	tf, exists := m.chunkTf[chunkID]
	if !exists {
		return 0
	}

	n := float64(len(m.chunkLens))
	if n == 0 {
		return 0
	}
	avgLen := float64(m.totalLen) / n
	if avgLen == 0 {
		return 0
	}
	chunkLen := float64(m.chunkLens[chunkID])

	var score float64
	for _, term := range terms {
		freq, ok := tf[term]
		if !ok {
			continue
		}
		df := float64(len(m.postings[term]))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		f := float64(freq)
		norm := f + m.config.K1*(1-m.config.B+m.config.B*chunkLen/avgLen)
		score += idf * (f * (m.config.K1 + 1)) / norm
	}
	return score
}

// AllIDs returns all chunk IDs in the index.
func (m *MemoryBM25Index) AllIDs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("index is closed")
	}

	ids := make([]string, 0, len(m.chunkTf))
	for id := range m.chunkTf {
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats returns index statistics.
func (m *MemoryBM25Index) Stats() *LexicalStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return &LexicalStats{}
	}

	stats := &LexicalStats{
		ChunkCount:  len(m.chunkTf),
		TermCount:   len(m.postings),
		TotalTokens: m.totalLen,
	}
	if stats.ChunkCount > 0 {
		stats.AvgChunkLen = float64(m.totalLen) / float64(stats.ChunkCount)
	}
	return stats
}

// Save persists the index to disk atomically (temp file + rename).
func (m *MemoryBM25Index) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}

	snap := bm25Snapshot{
		Config:    m.config,
		ChunkTf:   m.chunkTf,
		ChunkLens: m.chunkLens,
		TotalLen:  m.totalLen,
	}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode bm25 snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load replaces the index contents with a snapshot from disk.
func (m *MemoryBM25Index) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open bm25 index: %w", err)
	}
	defer file.Close()

	var snap bm25Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return &errors.IndexCorruptionError{
			Component: "bm25",
			Detail:    "snapshot decode failed",
			Cause:     err,
		}
	}
	if snap.ChunkTf == nil || snap.ChunkLens == nil {
		return &errors.IndexCorruptionError{
			Component: "bm25",
			Detail:    "snapshot missing term statistics",
		}
	}

	m.config = snap.Config
	m.tokenizer = NewTokenizer(snap.Config.MinTokenLength, snap.Config.StopWords)
	m.chunkTf = snap.ChunkTf
	m.chunkLens = snap.ChunkLens
	m.totalLen = snap.TotalLen
	m.path = path

	// Rebuild posting lists from per-chunk frequencies.
	m.postings = make(map[string]map[string]int)
	for id, tf := range m.chunkTf {
		for term, count := range tf {
			posting := m.postings[term]
			if posting == nil {
				posting = make(map[string]int)
				m.postings[term] = posting
			}
			posting[id] = count
		}
	}

	return nil
}

// Close releases resources.
func (m *MemoryBM25Index) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.postings = nil
	m.chunkTf = nil
	m.chunkLens = nil
	return nil
}

// uniqueTerms deduplicates query terms, preserving first-seen order.
func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Verify interface implementation
var _ BM25Index = (*MemoryBM25Index)(nil)
