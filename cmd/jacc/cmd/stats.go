package cmd

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index size, cache and per-agent performance statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, asJSON bool) error {
	a, err := newApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	chunkCount, err := a.chunks.Count(ctx)
	if err != nil {
		return err
	}

	stats := map[string]any{
		"chunks":  chunkCount,
		"vectors": a.vectors.Count(),
		"agents":  a.orchestrator.GetPerformanceStats(),
	}
	if cacheStats := a.orchestrator.CacheStats(); cacheStats != nil {
		stats["cache"] = cacheStats
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out := newPrinter(cmd.OutOrStdout())
	out.Headerf("Index")
	out.Infof("  chunks:  %d", chunkCount)
	out.Infof("  vectors: %d", a.vectors.Count())

	agents := a.orchestrator.GetPerformanceStats()
	if len(agents) > 0 {
		out.Headerf("Agents")
		ids := make([]string, 0, len(agents))
		for id := range agents {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			s := agents[id]
			out.Infof("  %-28s runs=%d ok=%d avg=%s min=%s max=%s",
				id, s.TotalExecutions, s.SuccessCount,
				s.AverageExecutionTime.Round(time.Millisecond),
				s.MinExecutionTime.Round(time.Millisecond),
				s.MaxExecutionTime.Round(time.Millisecond))
		}
	}
	return nil
}
