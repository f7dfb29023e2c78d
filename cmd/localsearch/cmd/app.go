package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/heresalord/localsearchengine/internal/chunk"
	"github.com/heresalord/localsearchengine/internal/config"
	"github.com/heresalord/localsearchengine/internal/embed"
	"github.com/heresalord/localsearchengine/internal/extract"
	"github.com/heresalord/localsearchengine/internal/scanner"
	"github.com/heresalord/localsearchengine/internal/search"
	"github.com/heresalord/localsearchengine/internal/store"
	"github.com/heresalord/localsearchengine/internal/tracker"
)

const (
	metadataFile = "metadata.db"
	bm25File     = "bm25.json"
	vectorsFile  = "vectors.hnsw"
)

// app bundles the stores and embedder a command operates on.
type app struct {
	cfg     *config.Config
	root    string
	dataDir string

	metadata store.MetadataStore
	bm25     store.BM25Index
	vectors  store.VectorStore
	embedder embed.Embedder
}

// resolveRoot determines the corpus root from an optional positional
// argument, falling back to marker-based discovery from the working
// directory.
func resolveRoot(args []string) (string, error) {
	if len(args) > 0 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return "", fmt.Errorf("resolve path %q: %w", args[0], err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("corpus root %q: %w", args[0], err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("corpus root %q is not a directory", args[0])
		}
		return abs, nil
	}

	root, err := config.FindCorpusRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	return root, nil
}

// openApp opens the index stores under the corpus data directory and
// constructs the configured embedder. The caller must close the app.
func openApp(ctx context.Context, root string, offline bool) (*app, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	dataDir := cfg.ResolveDataDir(root)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	a := &app{cfg: cfg, root: root, dataDir: dataDir}

	a.metadata, err = store.NewSQLiteMetadataStore(filepath.Join(dataDir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	a.bm25, err = store.NewMemoryBM25Index(filepath.Join(dataDir, bm25File), store.DefaultBM25Config())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	a.embedder, err = newEmbedder(ctx, cfg, offline)
	if err != nil {
		a.close()
		return nil, err
	}

	a.vectors, err = store.NewHNSWStore(store.DefaultVectorStoreConfig(a.embedder.Dimensions()))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	vectorPath := filepath.Join(dataDir, vectorsFile)
	if fileExists(vectorPath) {
		if err := a.vectors.Load(vectorPath); err != nil {
			a.close()
			return nil, fmt.Errorf("load vector index (run 'localsearch index --force' to rebuild): %w", err)
		}
	}

	return a, nil
}

// newEmbedder builds the embedder selected by configuration. The
// offline flag forces the deterministic static provider.
func newEmbedder(ctx context.Context, cfg *config.Config, offline bool) (embed.Embedder, error) {
	opts := embed.Options{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.OllamaHost,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
	}
	if offline {
		opts.Provider = string(embed.ProviderStatic)
	}

	embedder, err := embed.NewEmbedder(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	slog.Debug("embedder_ready",
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()))
	return embedder, nil
}

// save persists the in-memory indexes to the data directory.
func (a *app) save() error {
	if err := a.bm25.Save(filepath.Join(a.dataDir, bm25File)); err != nil {
		return fmt.Errorf("save keyword index: %w", err)
	}
	if err := a.vectors.Save(filepath.Join(a.dataDir, vectorsFile)); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.vectors != nil {
		_ = a.vectors.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.bm25 != nil {
		_ = a.bm25.Close()
	}
	if a.metadata != nil {
		_ = a.metadata.Close()
	}
}

// newTracker builds the indexing pipeline over the app's stores.
func (a *app) newTracker() (*tracker.Tracker, error) {
	chunker, err := chunk.NewChunker(chunk.Options{
		Size:    a.cfg.Chunking.Size,
		Overlap: a.cfg.Chunking.Overlap,
		MinSize: a.cfg.Chunking.MinSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	registry := extract.NewRegistry()
	scan := scanner.New(scanner.Options{
		Include:     a.cfg.Paths.Include,
		Exclude:     a.cfg.Paths.Exclude,
		MaxFileSize: a.cfg.Indexing.MaxFileSize,
		FileFilter:  registry.Supported,
	})

	return tracker.NewTracker(tracker.Config{
		Root:        a.root,
		Metadata:    a.metadata,
		BM25:        a.bm25,
		Vectors:     a.vectors,
		Embedder:    a.embedder,
		Chunker:     chunker,
		Extractors:  registry,
		Scanner:     scan,
		Workers:     a.cfg.Indexing.Workers,
		MaxFileSize: a.cfg.Indexing.MaxFileSize,
	})
}

// newEngine builds the search engine over the app's stores.
func (a *app) newEngine() (*search.Engine, error) {
	return search.NewEngine(a.bm25, a.vectors, a.embedder, a.metadata, search.Config{
		SemanticWeight: a.cfg.Search.SemanticWeight,
		KeywordWeight:  a.cfg.Search.KeywordWeight,
		MinScore:       a.cfg.Search.MinScore,
		CandidatePool:  a.cfg.Search.CandidatePool,
		MaxResults:     a.cfg.Search.MaxResults,
		Timeout:        a.cfg.Search.Timeout,
	})
}

// requireIndex fails with a hint when no index has been built yet.
func requireIndex(root string) error {
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if !fileExists(filepath.Join(cfg.ResolveDataDir(root), metadataFile)) {
		return fmt.Errorf("no index found under %s. Run 'localsearch index' first", root)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
