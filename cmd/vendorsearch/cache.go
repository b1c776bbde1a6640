package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the search cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts per generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := openCache(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GENERATION\tENTRIES")
			for _, g := range stats.Generations {
				entries := fmt.Sprint(g.Entries)
				if g.Entries < 0 {
					entries = "n/a"
				}
				fmt.Fprintf(w, "%s\t%s\n", g.Name, entries)
			}
			return w.Flush()
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := openCache(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.Clear(ctx, expiredOnly)
			if err != nil {
				return err
			}
			if expiredOnly {
				fmt.Printf("Cleared %d expired cache entries.\n", n)
			} else {
				fmt.Printf("Cleared %d cache entries.\n", n)
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
