package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pm-intelligence/internal/app"
	"pm-intelligence/internal/ingest"
)

var (
	ingestEntities      []string
	ingestRelationships []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load entity and relationship CSV exports into the graph",
	Long: `Upsert entities by id and relationships by (from, to, type).

Entity files carry an id,type,name header followed by attribute columns.
Relationship files carry from_id,to_id,type,source_type and optional
authority and date columns. All entity files are loaded before any
relationship file.`,
	Example: `  pmctl ingest --entities firms.csv --entities funds.csv --relationships deals.csv`,
	Args:    cobra.NoArgs,
	RunE:    runIngest,
}

func init() {
	ingestCmd.Flags().StringArrayVar(&ingestEntities, "entities", nil, "Entity CSV file (repeatable)")
	ingestCmd.Flags().StringArrayVar(&ingestRelationships, "relationships", nil, "Relationship CSV file (repeatable)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(ingestEntities) == 0 && len(ingestRelationships) == 0 {
		return fmt.Errorf("nothing to ingest: pass --entities or --relationships")
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		var reports []*ingest.Report
		load := func(path string, fn func(context.Context, string, io.Reader) (*ingest.Report, error)) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			rep, err := fn(ctx, filepath.Base(path), f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports = append(reports, rep)
			return nil
		}

		for _, path := range ingestEntities {
			if err := load(path, a.Ingester.IngestEntities); err != nil {
				return err
			}
		}
		for _, path := range ingestRelationships {
			if err := load(path, a.Ingester.IngestRelationships); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, reports)
		}
		for _, r := range reports {
			fmt.Fprintf(out, "%s (%s): %d rows, %d created, %d updated, %d unchanged, %d failed, %d indexed in %dms\n",
				r.File, r.Kind, r.Rows, r.Created, r.Updated, r.Unchanged, r.Failed, r.Indexed, r.DurationMs)
			for _, rej := range r.Rejected {
				fmt.Fprintf(out, "  rejected %s\n", rej.Error())
			}
		}
		return nil
	})
}
