package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heresalord/localsearchengine/internal/config"
	"github.com/heresalord/localsearchengine/internal/output"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Long: `Write a .localsearch.yaml with the default configuration to the
given directory (default: current directory).

The file also marks the directory as a corpus root, so commands run in
subdirectories find it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, args)
		},
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	out := output.New(cmd.OutOrStdout())

	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", root, err)
	}

	path := filepath.Join(abs, ".localsearch.yaml")
	if fileExists(path) {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := config.NewConfig()
	if err := cfg.WriteYAML(path); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}

	out.Successf("Wrote %s", path)
	out.Status("", "Edit it to tune chunking, search weights and excludes,")
	out.Status("", "then run 'localsearch index' to build the index.")
	return nil
}
