package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heresalord/localsearchengine/internal/config"
	"github.com/heresalord/localsearchengine/internal/index"
	"github.com/heresalord/localsearchengine/internal/output"
	"github.com/heresalord/localsearchengine/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index status for the current corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd)
		},
	}
}

// runStatus reads the persisted indexes directly, without constructing
// an embedder, so it works offline and never touches the network.
func runStatus(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot(nil)
	if err != nil {
		return err
	}
	if err := requireIndex(root); err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	dataDir := cfg.ResolveDataDir(root)

	metadata, bm25, vectors, err := openIndexes(dataDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = vectors.Close()
		_ = bm25.Close()
		_ = metadata.Close()
	}()

	documents, chunks, err := metadata.Counts(ctx)
	if err != nil {
		return fmt.Errorf("read index counts: %w", err)
	}
	model, _ := metadata.GetState(ctx, store.StateKeyIndexModel)
	dims, _ := metadata.GetState(ctx, store.StateKeyIndexDimension)

	out.Statusf("📦", "Index for %s", root)
	out.Status("", fmt.Sprintf("Data directory:  %s", dataDir))
	if model != "" {
		out.Status("", fmt.Sprintf("Embedding model: %s (%s dimensions)", model, dims))
	}
	out.Status("", fmt.Sprintf("Documents:       %d", documents))
	out.Status("", fmt.Sprintf("Chunks:          %d", chunks))
	out.Status("", fmt.Sprintf("Vectors:         %d", vectors.Count()))
	if stats := bm25.Stats(); stats != nil {
		out.Status("", fmt.Sprintf("Keyword terms:   %d", stats.TermCount))
	}
	out.Newline()

	checker := index.NewConsistencyChecker(metadata, bm25, vectors)
	consistent, err := checker.QuickCheck(ctx)
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}
	if consistent {
		out.Success("Indexes are consistent")
	} else {
		out.Warning("Index counts disagree. Run 'localsearch check' for details.")
	}
	return nil
}

// openIndexes opens the persisted stores read-only-style: the vector
// store dimension comes from the file on disk, not from an embedder.
func openIndexes(dataDir string) (store.MetadataStore, store.BM25Index, store.VectorStore, error) {
	metadata, err := store.NewSQLiteMetadataStore(filepath.Join(dataDir, metadataFile))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open metadata store: %w", err)
	}

	bm25, err := store.NewMemoryBM25Index(filepath.Join(dataDir, bm25File), store.DefaultBM25Config())
	if err != nil {
		_ = metadata.Close()
		return nil, nil, nil, fmt.Errorf("open keyword index: %w", err)
	}

	vectorPath := filepath.Join(dataDir, vectorsFile)
	dims := 0
	if fileExists(vectorPath) {
		dims, err = store.ReadHNSWStoreDimensions(vectorPath)
		if err != nil {
			_ = bm25.Close()
			_ = metadata.Close()
			return nil, nil, nil, fmt.Errorf("read vector index header: %w", err)
		}
	}
	if dims == 0 {
		dims = 1 // empty store placeholder, never searched
	}
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		_ = bm25.Close()
		_ = metadata.Close()
		return nil, nil, nil, fmt.Errorf("open vector store: %w", err)
	}
	if fileExists(vectorPath) {
		if err := vectors.Load(vectorPath); err != nil {
			_ = vectors.Close()
			_ = bm25.Close()
			_ = metadata.Close()
			return nil, nil, nil, fmt.Errorf("load vector index: %w", err)
		}
	}
	return metadata, bm25, vectors, nil
}
