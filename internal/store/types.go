// Package store provides the persistence layer for indexed data: the HNSW
// vector store, the BM25 lexical index, and chunk/document metadata (SQLite).
package store

import (
	"context"
	"time"
)

// State keys for the metadata store. The index records which embedding
// model and dimension built it so a changed embedder is detected at
// startup instead of silently producing garbage scores.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index
	StateKeyIndexModel = "index_embedding_model"
)

// Chunk represents a retrievable unit of document text. Chunks are
// contiguous slices of the source document; StartOffset/EndOffset are
// byte offsets into the extracted text.
type Chunk struct {
	ID          string // first 16 hex chars of SHA256("docID:seq")
	DocID       string // parent document ID
	DocPath     string // path relative to corpus root
	Seq         int    // 0-based position within the document
	Content     string
	StartOffset int
	EndOffset   int
	CreatedAt   time.Time
}

// Document represents a tracked source file in the index.
type Document struct {
	ID          string    // SHA256(relative_path), truncated to 16 hex chars
	Path        string    // relative to corpus root
	Fingerprint string    // SHA256 of raw file bytes
	Size        int64     // file size in bytes
	ModTime     time.Time // last modification time
	ChunkCount  int
	IndexedAt   time.Time
}

// MetadataStore persists documents, chunks, and engine state in SQLite.
// It is the source of truth for cross-index consistency checks.
type MetadataStore interface {
	// Document operations
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetDocumentByPath(ctx context.Context, path string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, id string) error // cascades to chunks

	// Chunk operations
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	GetChunkIDsByDocument(ctx context.Context, docID string) ([]string, error)
	DeleteChunks(ctx context.Context, ids []string) error
	AllChunkIDs(ctx context.Context) ([]string, error)

	// State operations (key-value store for runtime state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Stats
	Counts(ctx context.Context) (documents, chunks int, err error)

	// Lifecycle
	Close() error
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// BM25Result represents a single lexical search result with a raw
// (unnormalized) BM25 score.
type BM25Result struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// LexicalStats provides statistics about the BM25 index.
type LexicalStats struct {
	ChunkCount  int
	TermCount   int
	AvgChunkLen float64
	TotalTokens int64
}

// BM25Index provides keyword search over chunks using the BM25 ranking
// function with incrementally maintained posting lists.
type BM25Index interface {
	// Index adds or replaces chunks in the index.
	Index(ctx context.Context, chunks []*Chunk) error

	// Search returns up to limit chunks matching query, scored by BM25.
	// Ties are broken by chunk ID ascending for deterministic output.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Score computes the raw BM25 score of a single chunk for the query.
	// Returns 0 for unknown chunks or queries with no indexed terms.
	Score(query string, chunkID string) float64

	// Delete removes chunks from the index. Unknown IDs are ignored so
	// deletion is idempotent.
	Delete(ctx context.Context, chunkIDs []string) error

	// AllIDs returns all chunk IDs in the index (for consistency checks).
	AllIDs() ([]string, error)

	// Stats returns index statistics.
	Stats() *LexicalStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.5)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 3)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.5,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 3,
	}
}

// DefaultStopWords contains common English words excluded from the index.
var DefaultStopWords = []string{
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had",
	"her", "was", "one", "our", "out", "his", "has", "have", "this",
	"that", "with", "they", "from", "been", "will", "would", "there",
	"their", "what", "which", "when", "were", "your", "said", "each",
	"she", "him", "its", "about", "into", "than", "then", "them", "these",
	"some", "could", "other", "also", "such", "only", "more", "very",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (e.g. 768 for nomic-embed-text)
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 20)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// VectorStore provides semantic search using approximate nearest
// neighbors over embedding vectors.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks)
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}
