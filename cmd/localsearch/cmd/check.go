package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/heresalord/localsearchengine/internal/config"
	"github.com/heresalord/localsearchengine/internal/index"
	"github.com/heresalord/localsearchengine/internal/output"
	"github.com/heresalord/localsearchengine/internal/tracker"
)

func newCheckCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify cross-index consistency",
		Long: `Verify that the keyword index, the vector index and the metadata
store agree on the set of indexed chunks.

With --repair, orphaned entries (present in an index but unknown to the
metadata store) are removed. Chunks missing from an index cannot be
repaired in place; rebuild with 'localsearch index --force'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd, repair)
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Remove orphaned index entries")

	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, repair bool) error {
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

	if repair {
		lock := tracker.NewIndexLock(dataDir)
		held, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire index lock: %w", err)
		}
		if !held {
			return fmt.Errorf("another localsearch process is indexing %s", root)
		}
		defer func() { _ = lock.Unlock() }()
	}

	checker := index.NewConsistencyChecker(metadata, bm25, vectors)
	result, err := checker.Check(ctx)
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}

	out.Statusf("🔎", "Checked %d chunks in %s", result.Checked, result.Duration.Round(time.Millisecond))
	if result.Consistent() {
		out.Success("Indexes are consistent")
		return nil
	}

	counts := map[index.InconsistencyType]int{}
	for _, issue := range result.Inconsistencies {
		counts[issue.Type]++
	}
	for kind, n := range counts {
		out.Warningf("%s: %d chunks", kind, n)
	}

	if !repair {
		out.Newline()
		out.Status("", "Run 'localsearch check --repair' to remove orphaned entries,")
		out.Status("", "or 'localsearch index --force' to rebuild from scratch.")
		return result.Err()
	}

	missing, err := checker.Repair(ctx, result.Inconsistencies)
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}

	bm25Path := filepath.Join(dataDir, bm25File)
	vectorsPath := filepath.Join(dataDir, vectorsFile)
	if err := bm25.Save(bm25Path); err != nil {
		return fmt.Errorf("save keyword index: %w", err)
	}
	if err := vectors.Save(vectorsPath); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}

	if missing > 0 {
		out.Warningf("%d chunks are missing from an index and cannot be repaired in place", missing)
		out.Status("", "Rebuild with 'localsearch index --force'.")
		return fmt.Errorf("index incomplete: %d chunks missing", missing)
	}
	out.Success("Orphaned entries removed; indexes are consistent")
	return nil
}
