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

	"github.com/heresalord/localsearchengine/internal/extract"
	"github.com/heresalord/localsearchengine/internal/output"
	"github.com/heresalord/localsearchengine/internal/tracker"
	"github.com/heresalord/localsearchengine/internal/watcher"
)

// saveInterval bounds how much index work an unclean shutdown can lose.
const saveInterval = 30 * time.Second

func newWatchCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a corpus and keep the index up to date",
		Long: `Watch a directory tree and reindex files as they change.

An initial reconciliation brings the index up to date with the current
state of the corpus, then file-system events keep it fresh. Bursts of
events for the same file are coalesced; the index is persisted
periodically and on shutdown.

Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root, err := resolveRoot(args)
			if err != nil {
				return err
			}
			return runWatch(ctx, cmd, root, offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no external embedding service)")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, root string, offline bool) error {
	out := output.New(cmd.OutOrStdout())

	app, err := openApp(ctx, root, offline)
	if err != nil {
		return err
	}
	defer app.close()

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

	if err := trk.CheckEmbedder(ctx); err != nil {
		return err
	}

	out.Statusf("📚", "Catching up the index for %s", root)
	if err := trk.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconciliation failed: %w", err)
	}
	if err := app.save(); err != nil {
		return err
	}

	registry := extract.NewRegistry()
	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow:  app.cfg.Indexing.WatchDebounce,
		ExcludePatterns: app.cfg.Paths.Exclude,
		FileFilter:      registry.Supported,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Stop()

	if err := w.Start(ctx, root); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	out.Statusf("👀", "Watching %s (%s mode). Press Ctrl+C to stop.", root, w.WatcherType())
	slog.Info("watch_started",
		slog.String("root", root),
		slog.String("watcher", w.WatcherType()))

	go logWatcherErrors(ctx, w.Errors())
	go periodicSave(ctx, app)

	if err := trk.Run(ctx, w.Events()); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch loop failed: %w", err)
	}

	out.Newline()
	out.Status("", "Shutting down, persisting index...")
	if err := app.save(); err != nil {
		return err
	}
	out.Success("Index saved")
	return nil
}

func logWatcherErrors(ctx context.Context, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func periodicSave(ctx context.Context, app *app) {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.save(); err != nil {
				slog.Warn("periodic_save_failed", slog.String("error", err.Error()))
			}
		}
	}
}
