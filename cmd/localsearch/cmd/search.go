package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heresalord/localsearchengine/internal/output"
	"github.com/heresalord/localsearchengine/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit          int
	mode           string
	minScore       float64
	semanticWeight float64
	keywordWeight  float64
	format         string
	offline        bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Search the indexed corpus using hybrid retrieval.

Keyword (BM25) and semantic (embedding) scores are fused with a
weighted sum; results below the score floor are dropped.

Examples:
  localsearch search "quarterly budget review"
  localsearch search "grilling marinade" --limit 5
  localsearch search "error handling" --mode semantic
  localsearch search "meeting notes" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Search mode: hybrid, semantic")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", -1, "Minimum fused score in [0,1] (-1 uses the configured default)")
	cmd.Flags().Float64Var(&opts.semanticWeight, "semantic-weight", 0, "Weight of the semantic signal (0 uses the configured default)")
	cmd.Flags().Float64Var(&opts.keywordWeight, "keyword-weight", 0, "Weight of the keyword signal (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (no external embedding service)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot(nil)
	if err != nil {
		return err
	}
	if err := requireIndex(root); err != nil {
		return err
	}

	app, err := openApp(ctx, root, opts.offline)
	if err != nil {
		return err
	}
	defer app.close()

	engine, err := app.newEngine()
	if err != nil {
		return err
	}

	searchOpts := search.Options{
		Mode:           search.Mode(opts.mode),
		Limit:          opts.limit,
		SemanticWeight: opts.semanticWeight,
		KeywordWeight:  opts.keywordWeight,
	}
	if opts.minScore >= 0 {
		searchOpts.MinScore = &opts.minScore
	}

	slog.Info("search_started", slog.String("query", query), slog.String("mode", opts.mode))
	resp, err := engine.Search(ctx, query, searchOpts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	slog.Info("search_complete",
		slog.Int("results", len(resp.Results)),
		slog.String("status", string(resp.Status)),
		slog.Duration("elapsed", resp.Elapsed))

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return formatText(out, query, resp)
}

// formatText renders results in a human-readable list.
func formatText(out *output.Writer, query string, resp *search.Response) error {
	if resp.Status == search.StatusDegraded && resp.Timeout != nil {
		out.Warningf("Query exceeded its %s budget; results may be incomplete", resp.Timeout.Timeout)
	}

	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q:", len(resp.Results), query)
	out.Newline()

	for i, r := range resp.Results {
		out.Statusf("", "%d. %s (score: %.2f)", i+1, r.DocPath, r.Score)
		if r.Snippet != "" {
			out.Status("", "   "+r.Snippet)
		}
		out.Newline()
	}
	return nil
}
