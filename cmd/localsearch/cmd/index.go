package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heresalord/localsearchengine/internal/output"
	"github.com/heresalord/localsearchengine/internal/tracker"
)

func newIndexCmd() *cobra.Command {
	var (
		force   bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or update the index for a corpus",
		Long: `Index a directory tree to enable hybrid search over its contents.

Files are scanned, text is extracted and chunked, and both the keyword
and the semantic index are updated. Unchanged files (same content
fingerprint) are skipped, so repeated runs only pay for what changed.

Use --force to discard the existing index and rebuild from scratch.
This is required after switching embedding models.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root, err := resolveRoot(args)
			if err != nil {
				return err
			}
			return runIndex(ctx, cmd, root, force, offline)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard the existing index and rebuild from scratch")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no external embedding service)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root string, force, offline bool) error {
	out := output.New(cmd.OutOrStdout())
	start := time.Now()

	app, err := openApp(ctx, root, offline)
	if err != nil {
		return err
	}
	defer app.close()

	// One mutating process per data directory.
	lock := tracker.NewIndexLock(app.dataDir)
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !held {
		return fmt.Errorf("another localsearch process is indexing %s", root)
	}
	defer func() { _ = lock.Unlock() }()

	trk, err := app.newTracker()
	if err != nil {
		return err
	}
	defer trk.Close()

	if !force {
		if err := trk.CheckEmbedder(ctx); err != nil {
			return err
		}
	}

	out.Statusf("📚", "Indexing %s", root)
	slog.Info("index_started",
		slog.String("root", root),
		slog.Bool("force", force),
		slog.String("model", app.embedder.ModelName()))

	if force {
		err = trk.Rebuild(ctx)
	} else {
		err = trk.Reconcile(ctx)
	}
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if err := app.save(); err != nil {
		return err
	}

	documents, chunks, err := app.metadata.Counts(ctx)
	if err != nil {
		return fmt.Errorf("read index counts: %w", err)
	}

	slog.Info("index_complete",
		slog.Int("documents", documents),
		slog.Int("chunks", chunks),
		slog.Duration("elapsed", time.Since(start)))
	out.Successf("Indexed %d documents (%d chunks) in %s",
		documents, chunks, time.Since(start).Round(time.Millisecond))
	return nil
}
