// Package integration tests the full flow from file on disk through
// indexing to a ranked search result, across package boundaries.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heresalord/localsearchengine/internal/chunk"
	"github.com/heresalord/localsearchengine/internal/embed"
	"github.com/heresalord/localsearchengine/internal/extract"
	"github.com/heresalord/localsearchengine/internal/index"
	"github.com/heresalord/localsearchengine/internal/scanner"
	"github.com/heresalord/localsearchengine/internal/search"
	"github.com/heresalord/localsearchengine/internal/store"
	"github.com/heresalord/localsearchengine/internal/tracker"
)

// pipeline wires the complete indexing and search stack over a temp
// corpus, with file-backed stores so persistence can be exercised.
type pipeline struct {
	root     string
	dataDir  string
	metadata store.MetadataStore
	bm25     store.BM25Index
	vectors  store.VectorStore
	embedder embed.Embedder
	tracker  *tracker.Tracker
	engine   *search.Engine
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	root := t.TempDir()
	dataDir := filepath.Join(root, ".localsearch")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	metadata, err := store.NewSQLiteMetadataStore(filepath.Join(dataDir, "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = metadata.Close() })

	bm25, err := store.NewMemoryBM25Index(filepath.Join(dataDir, "bm25.json"), store.DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bm25.Close() })

	embedder := embed.NewStaticEmbedder()
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	chunker, err := chunk.NewChunker(chunk.Options{})
	require.NoError(t, err)
	registry := extract.NewRegistry()

	trk, err := tracker.NewTracker(tracker.Config{
		Root:       root,
		Metadata:   metadata,
		BM25:       bm25,
		Vectors:    vectors,
		Embedder:   embedder,
		Chunker:    chunker,
		Extractors: registry,
		Scanner:    scanner.New(scanner.Options{FileFilter: registry.Supported}),
		Workers:    2,
	})
	require.NoError(t, err)
	t.Cleanup(trk.Close)

	cfg := search.DefaultConfig()
	cfg.MinScore = 0 // static-embedder similarities are modest
	engine, err := search.NewEngine(bm25, vectors, embedder, metadata, cfg)
	require.NoError(t, err)

	return &pipeline{
		root:     root,
		dataDir:  dataDir,
		metadata: metadata,
		bm25:     bm25,
		vectors:  vectors,
		embedder: embedder,
		tracker:  trk,
		engine:   engine,
	}
}

func (p *pipeline) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(p.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// topPath returns the document path of the best result for a query.
func (p *pipeline) topPath(t *testing.T, query string) string {
	t.Helper()
	resp, err := p.engine.Search(context.Background(), query, search.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results, "no results for %q", query)
	return resp.Results[0].DocPath
}

func TestPipeline_IndexThenSearch(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	p.write(t, "recipes/peaches.md", "Grilled peach salad with burrata, basil and olive oil. Grill the peaches cut side down.")
	p.write(t, "finance/budget.md", "Quarterly budget review. Travel spend is over plan and subscriptions need an audit.")
	p.write(t, "journal/ride.txt", "Sunday gravel ride along the river levee, strong headwind on the way back.")

	require.NoError(t, p.tracker.Reconcile(ctx))

	assert.Equal(t, "recipes/peaches.md", p.topPath(t, "grilled peach salad burrata"))
	assert.Equal(t, "finance/budget.md", p.topPath(t, "quarterly budget subscriptions"))
	assert.Equal(t, "journal/ride.txt", p.topPath(t, "gravel ride headwind levee"))
}

func TestPipeline_IncrementalUpdateIsSearchable(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	p.write(t, "notes/topic.md", "Original discussion of sourdough starter hydration ratios.")
	require.NoError(t, p.tracker.Reconcile(ctx))
	assert.Equal(t, "notes/topic.md", p.topPath(t, "sourdough starter hydration"))

	// Rewrite the file with unrelated content and reindex just that path.
	p.write(t, "notes/topic.md", "Replaced with telescope collimation steps for the winter observing season.")
	require.NoError(t, p.tracker.OnFileChanged(ctx, "notes/topic.md"))

	assert.Equal(t, "notes/topic.md", p.topPath(t, "telescope collimation winter"))

	// The old content must no longer match by keyword.
	resp, err := p.engine.Search(ctx, "sourdough hydration", search.Options{})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotContains(t, r.Content, "sourdough")
	}
}

func TestPipeline_RemovalDropsDocument(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	p.write(t, "a.md", "Lighthouse maintenance log for the eastern breakwater.")
	require.NoError(t, p.tracker.Reconcile(ctx))

	require.NoError(t, os.Remove(filepath.Join(p.root, "a.md")))
	require.NoError(t, p.tracker.Reconcile(ctx))

	resp, err := p.engine.Search(ctx, "lighthouse breakwater", search.Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	docs, chunks, err := p.metadata.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, docs)
	assert.Zero(t, chunks)
}

func TestPipeline_IndexesSurvivePersistenceRoundTrip(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	p.write(t, "howto/bike.md", "Bleeding hydraulic disc brakes: mineral oil, syringe at the caliper, lever at the bar.")
	require.NoError(t, p.tracker.Reconcile(ctx))

	bm25Path := filepath.Join(p.dataDir, "bm25.json")
	vectorsPath := filepath.Join(p.dataDir, "vectors.hnsw")
	require.NoError(t, p.bm25.Save(bm25Path))
	require.NoError(t, p.vectors.Save(vectorsPath))

	// Reopen everything from disk, as a fresh process would.
	metadata, err := store.NewSQLiteMetadataStore(filepath.Join(p.dataDir, "metadata.db"))
	require.NoError(t, err)
	defer func() { _ = metadata.Close() }()

	bm25, err := store.NewMemoryBM25Index(bm25Path, store.DefaultBM25Config())
	require.NoError(t, err)
	defer func() { _ = bm25.Close() }()

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(p.embedder.Dimensions()))
	require.NoError(t, err)
	defer func() { _ = vectors.Close() }()
	require.NoError(t, vectors.Load(vectorsPath))

	cfg := search.DefaultConfig()
	cfg.MinScore = 0
	engine, err := search.NewEngine(bm25, vectors, p.embedder, metadata, cfg)
	require.NoError(t, err)

	resp, err := engine.Search(ctx, "hydraulic disc brakes mineral oil", search.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "howto/bike.md", resp.Results[0].DocPath)

	// The reopened stores still satisfy the cross-index invariant.
	result, err := index.NewConsistencyChecker(metadata, bm25, vectors).Check(ctx)
	require.NoError(t, err)
	assert.True(t, result.Consistent())
}

func TestPipeline_ReindexingUnchangedCorpusIsIdempotent(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	p.write(t, "a.md", "Notes on pruning apple trees in late winter.")
	p.write(t, "b.md", "Tasting notes from the natural wine fair.")
	require.NoError(t, p.tracker.Reconcile(ctx))

	before, err := p.metadata.AllChunkIDs(ctx)
	require.NoError(t, err)
	vectorsBefore := p.vectors.Count()

	require.NoError(t, p.tracker.Reconcile(ctx))

	after, err := p.metadata.AllChunkIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, before, after)
	assert.Equal(t, vectorsBefore, p.vectors.Count())
}
