package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/searchlog"
)

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Query and manage the search log",
	}

	cmd.AddCommand(
		newLogSearchCmd(),
		newLogStatsCmd(),
		newLogCleanupCmd(),
	)
	return cmd
}

func newLogSearchCmd() *cobra.Command {
	var (
		configPath string
		keyword    string
		city       string
		source     string
		requestID  string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search logged searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openSearchLog(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.SearchLogQueryOpts{
				Keyword:   keyword,
				City:      city,
				Source:    source,
				RequestID: requestID,
				Limit:     limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatLogEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&keyword, "keyword", "", "filter by keyword substring")
	cmd.Flags().StringVar(&city, "city", "", "filter by city")
	cmd.Flags().StringVar(&source, "source", "", "filter by result source (cache, database, combined, external-fallback)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "filter by request ID")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")
	return cmd
}

func newLogStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show search counts and cost by source and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openSearchLog(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatLogStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func newLogCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete search log entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openSearchLog(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d search log entries.\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func openSearchLog(configPath string) (*searchlog.Logger, func(), error) {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	l, err := searchlog.New(cfg.SearchLog.DBPath, cfg.SearchLog.RetentionDays, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open search log: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatLogEntries(entries []models.SearchLogEntry) string {
	if len(entries) == 0 {
		return "No search log entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-24s %-18s %-18s %6s %9s %8s %-20s\n",
		"REQUEST ID", "KEYWORD", "LOCATION", "SOURCE", "TOTAL", "COST", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 148) + "\n")
	for _, e := range entries {
		source := e.Source
		if e.FailedStage != "" {
			source = "failed:" + e.FailedStage
		}
		fmt.Fprintf(&b, "%-36s %-24s %-18s %-18s %6d $%8.4f %6dms %-20s\n",
			e.RequestID, truncate(e.Keyword, 24), truncate(e.City+", "+e.State, 18), source,
			e.TotalResults, e.Cost, e.LatencyMs, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatLogStats(stats []models.SearchLogStat) string {
	if len(stats) == 0 {
		return "No search log stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-12s %8s %10s\n", "SOURCE", "DAY", "COUNT", "COST")
	b.WriteString(strings.Repeat("-", 51) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-18s %-12s %8d $%9.4f\n", s.Source, s.Day, s.Count, s.Cost)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
