package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pm-intelligence/internal/app"
	"pm-intelligence/internal/search"
)

var searchQuery search.Query

var searchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Look up entities in the search index",
	Example: `  pmctl search blackstne --fuzzy
  pmctl search "growth equity" --type FUND --sector healthcare`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchQuery.Type, "type", "", "Restrict to an entity type")
	searchCmd.Flags().StringVar(&searchQuery.Sector, "sector", "", "Restrict to a sector")
	searchCmd.Flags().StringVar(&searchQuery.Country, "country", "", "Restrict to a country")
	searchCmd.Flags().BoolVar(&searchQuery.Fuzzy, "fuzzy", false, "Tolerate misspellings")
	searchCmd.Flags().IntVar(&searchQuery.Size, "size", 10, "Maximum hits")
}

func runSearch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if a.Index == nil {
			return errors.New("entity search is not configured: enable database.elasticsearch")
		}
		q := searchQuery
		q.Text = strings.Join(args, " ")
		res, err := a.Index.Search(ctx, q)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "%d hits in %dms\n", res.TotalHits, res.Took)
		for _, h := range res.Hits {
			fmt.Fprintf(out, "  %-40s %-12s %-8.2f %s\n", h.Name, h.Type, h.Score, h.ID)
		}
		return nil
	})
}
