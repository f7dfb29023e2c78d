package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heresalord/localsearchengine/internal/config"
	"github.com/heresalord/localsearchengine/internal/output"
	"github.com/heresalord/localsearchengine/internal/tracker"
)

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the index for the current corpus",
		Long: `Delete all index data (metadata, keyword index, vector index) for
the current corpus. The corpus files themselves are untouched.

Configuration (.localsearch.yaml) is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReset(cmd, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runReset(cmd *cobra.Command, yes bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot(nil)
	if err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	dataDir := cfg.ResolveDataDir(root)

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		out.Status("", fmt.Sprintf("No index data under %s", dataDir))
		return nil
	}

	if !yes {
		out.Warningf("This deletes all index data under %s", dataDir)
		fmt.Fprint(cmd.OutOrStdout(), "Continue? [y/N] ")
		var answer string
		_, _ = fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" && answer != "yes" {
			out.Status("", "Aborted")
			return nil
		}
	}

	// Refuse to delete out from under an active indexer.
	lock := tracker.NewIndexLock(dataDir)
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !held {
		return fmt.Errorf("another localsearch process is using %s", dataDir)
	}
	_ = lock.Unlock()

	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("delete index data: %w", err)
	}
	out.Successf("Deleted %s", dataDir)
	return nil
}
