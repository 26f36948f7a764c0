package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacc-ai/jacc-core/internal/orchestrator"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	format     string // answer format: detailed, concise, bullet
	output     string // "text" or "json"
	maxResults int
	namespaces []string
	user       string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Ask a question against the ingested documents",
		Long: `Search runs the full retrieval workflow: keyword, vector and
AI-enhanced search in parallel, then synthesizes one cited answer.

Examples:
  jacc search "What are Clearent support hours"
  jacc search "TracerPay pricing" --format bullet
  jacc search "terminal setup" --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", orchestrator.FormatDetailed, "Answer format: detailed, concise, bullet")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json")
	cmd.Flags().IntVarP(&opts.maxResults, "limit", "n", 10, "Maximum results fed into synthesis")
	cmd.Flags().StringSliceVar(&opts.namespaces, "namespace", nil, "Restrict vector search to namespaces (repeatable)")
	cmd.Flags().StringVar(&opts.user, "user", "", "User identity for enhancement caching")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	a, err := newApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.orchestrator.OrchestrateSearch(ctx, &orchestrator.WorkflowContext{
		UserID:     opts.user,
		Query:      query,
		Namespaces: opts.namespaces,
		Format:     opts.format,
		MaxResults: opts.maxResults,
	})
	if err != nil {
		return err
	}

	if opts.output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	out := newPrinter(cmd.OutOrStdout())
	out.Answer(answer.Response)
	if len(answer.Sources) > 0 {
		out.Infof("")
		out.Infof("Sources:")
		for _, src := range answer.Sources {
			out.Infof("  - %s (relevance %.2f)", src.DocumentName, src.Relevance)
		}
	}
	out.Dimf("confidence %.2f, %d results", answer.Confidence, answer.SearchResultsCount)
	return nil
}
