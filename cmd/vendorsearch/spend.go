package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/tracker"
)

func newSpendCmd() *cobra.Command {
	var (
		configPath string
		since      string
		recent     bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "spend",
		Short: "Show external provider spend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			sinceTime := beginningOfMonth()
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				sinceTime = t
			}

			ctx := context.Background()
			if recent {
				records, err := tr.Recent(ctx, sinceTime, limit)
				if err != nil {
					return err
				}
				fmt.Print(formatSpendRecords(records))
				return nil
			}

			summaries, err := tr.DailySummary(ctx, sinceTime)
			if err != nil {
				return err
			}
			fmt.Print(formatSpendSummary(summaries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD, default: start of month)")
	cmd.Flags().BoolVar(&recent, "recent", false, "list individual provider calls")
	cmd.Flags().IntVar(&limit, "limit", 50, "max calls to list with --recent")
	return cmd
}

func beginningOfMonth() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func formatSpendSummary(summaries []models.SpendSummary) string {
	if len(summaries) == 0 {
		return "No provider spend found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %8s %8s %10s %10s %10s\n", "DAY", "CALLS", "FAILED", "RESULTS", "AVG MS", "COST")
	b.WriteString(strings.Repeat("-", 63) + "\n")
	var total float64
	for _, s := range summaries {
		fmt.Fprintf(&b, "%-12s %8d %8d %10d %10.0f $%9.4f\n",
			s.Day, s.Calls, s.FailedCalls, s.TotalResults, s.AvgLatencyMs, s.TotalCost)
		total += s.TotalCost
	}
	b.WriteString(strings.Repeat("-", 63) + "\n")
	fmt.Fprintf(&b, "%52s $%9.4f\n", "TOTAL:", total)
	return b.String()
}

func formatSpendRecords(records []models.SpendRecord) string {
	if len(records) == 0 {
		return "No provider calls found.\n"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTATUS\tQUERY\tLOCATION\tRESULTS\tMS\tCOST")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t$%.4f\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status, r.Query,
			r.LocationCode, r.ResultCount, r.ResponseMs, r.Cost)
	}
	_ = w.Flush()
	return b.String()
}

