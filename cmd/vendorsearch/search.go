package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

func newSearchCmd() *cobra.Command {
	var (
		configPath  string
		location    string
		subcategory string
		page        int
		limit       int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Run one search and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := models.InboundSearch{
				Keyword:  strings.Join(args, " "),
				Location: location,
				Page:     &page,
				Limit:    &limit,
			}
			if cmd.Flags().Changed("subcategory") {
				in.Subcategory = &subcategory
			}
			req, err := in.ToRequest()
			if err != nil {
				return err
			}

			cfg, log, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := context.Background()
			a, err := openApp(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			// Close waits for the background cache write.
			defer func() { _ = a.Close() }()

			resp, err := a.engine.Search(ctx, req)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Print(formatSearchResponse(resp))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&location, "location", "l", "", `location as "City, ST"`)
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "optional subcategory")
	cmd.Flags().IntVar(&page, "page", models.DefaultPage, "page number")
	cmd.Flags().IntVar(&limit, "limit", models.DefaultLimit, "results per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func formatSearchResponse(resp models.SearchResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s  Total: %d  Page: %d  More: %v  Time: %dms\n\n",
		resp.Source, resp.TotalResults, resp.Page, resp.HasMore, resp.QueryTimeMs)
	if len(resp.Results) == 0 {
		b.WriteString("No results.\n")
		return b.String()
	}
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tKIND\tRATING\tCITY\tID")
	offset := (resp.Page - 1) * resp.Limit
	for i, l := range resp.Results {
		rating := "-"
		if l.Rating != nil {
			rating = fmt.Sprintf("%.1f (%d)", l.Rating.Value, l.Rating.Count)
		}
		title := l.Title
		if l.Synthetic {
			title += " [synthetic]"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", offset+i+1, title, l.SourceKind, rating, l.City, l.ExternalID)
	}
	_ = w.Flush()
	return b.String()
}
