package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"pm-intelligence/internal/app"
	ir "pm-intelligence/internal/workers/intelligence/infer-relationships"
)

var (
	inferPattern        string
	inferPatterns       []string
	inferBatchSize      int
	inferCandidateLimit int
	inferDryRun         bool
	inferList           bool
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run relationship inference over the graph",
	Long: `Run the inference patterns and persist the relationships that clear
their confidence threshold. Existing relationships are only ever upgraded.

--pattern runs a single pattern; --patterns restricts a full run.`,
	Example: `  pmctl infer --dry-run
  pmctl infer --pattern co_investment
  pmctl infer --patterns co_investment,sector_alignment --batch-size 25`,
	Args: cobra.NoArgs,
	RunE: runInfer,
}

func init() {
	inferCmd.Flags().StringVar(&inferPattern, "pattern", "", "Run a single pattern")
	inferCmd.Flags().StringSliceVar(&inferPatterns, "patterns", nil, "Restrict a full run to these patterns")
	inferCmd.Flags().IntVar(&inferBatchSize, "batch-size", 0, "Concurrent candidate evaluations")
	inferCmd.Flags().IntVar(&inferCandidateLimit, "candidate-limit", 0, "Maximum candidates per pattern")
	inferCmd.Flags().BoolVar(&inferDryRun, "dry-run", false, "Score candidates without writing")
	inferCmd.Flags().BoolVar(&inferList, "list", false, "List the available patterns and exit")
}

func runInfer(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		out := cmd.OutOrStdout()
		if inferList {
			for _, name := range a.Engine.PatternNames() {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		act, err := activity(ir.TaskType)
		if err != nil {
			return err
		}
		h := ir.NewHandler(&ir.Config{Timeout: timeout}, a.Engine, act, log)
		res, err := h.Execute(ctx, &ir.Input{
			Pattern:        inferPattern,
			Patterns:       inferPatterns,
			BatchSize:      inferBatchSize,
			CandidateLimit: inferCandidateLimit,
			DryRun:         inferDryRun,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "%d candidates, %d persisted, %d failed in %dms", res.TotalInferences,
			res.SuccessfulInferences, res.FailedInferences, res.ProcessingTimeMs)
		if res.DryRun {
			fmt.Fprint(out, " (dry run)")
		}
		fmt.Fprintln(out)

		types := make([]string, 0, len(res.RelationshipTypesBreakdown))
		for t := range res.RelationshipTypesBreakdown {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(out, "  %-20s %d\n", t, res.RelationshipTypesBreakdown[t])
		}
		for _, p := range res.PatternResults {
			if p.Error != "" {
				fmt.Fprintf(out, "  pattern %s failed: %s\n", p.Pattern, p.Error)
			}
		}
		return nil
	})
}
