package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pm-intelligence/internal/app"
	cvc "pm-intelligence/internal/workers/intelligence/cross-validate-claim"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Cross-validate a claim against its sources",
	Long: `Read a claim document (file, or stdin for "-") and score it against the
sources that support or dispute it. The document has the same shape as the
cross-validate-claim job variables:

  {"claim": {"subject": "KKR", "predicate": "ACQUIRED", "object": "Envision"},
   "sources": [{"sourceType": "SEC_FILINGS", "agrees": true}],
   "verdict": {"correct": true}}

A verdict feeds each source's outcome back into its authority score.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List source types with their current authority",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func init() {
	validateCmd.AddCommand(sourcesCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	act, err := activity(cvc.TaskType)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		h := cvc.NewHandler(&cvc.Config{Timeout: timeout}, a.Intelligence, act, log)
		input, err := h.ParseInput(string(raw))
		if err != nil {
			return err
		}
		res, err := h.Execute(ctx, input)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "%s\n  confidence %.2f (%s), %d of %d sources agree\n",
			res.Claim.String(), res.Confidence, res.Consensus, len(res.Agreeing), res.SourceCount)
		if len(res.Conflicting) > 0 {
			fmt.Fprintf(out, "  conflicting: %s\n", strings.Join(res.Conflicting, ", "))
		}
		if len(res.PerformanceUpdated) > 0 {
			fmt.Fprintf(out, "  performance updated: %s\n", strings.Join(res.PerformanceUpdated, ", "))
		}
		if len(res.PerformanceSkipped) > 0 {
			fmt.Fprintf(out, "  unknown source types skipped: %s\n", strings.Join(res.PerformanceSkipped, ", "))
		}
		return nil
	})
}

func runSources(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		profiles := a.Intelligence.Profiles()
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, profiles)
		}
		for _, p := range profiles {
			fmt.Fprintf(out, "%-22s %-14s authority %.3f  outcomes %d\n", p.Name, p.Category, p.Authority, p.Outcomes)
		}
		return nil
	})
}
