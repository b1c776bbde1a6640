package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/vendorsearch/pkg/budget"
	"github.com/pario-ai/vendorsearch/pkg/tracker"
)

func newBudgetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show provider spend against budget policies",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show spend vs limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if !cfg.Budget.Enabled {
				fmt.Println("Budget enforcement is disabled.")
				return nil
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			statuses, err := budget.New(cfg.Budget.Policies, tr).Status(context.Background())
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("No budget policies configured.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PERIOD\tMAX COST\tSPENT\tREMAINING")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t$%.2f\t$%.4f\t$%.4f\n",
					s.Policy.Period, s.Policy.MaxCost, s.Spent, s.Remaining)
			}
			return w.Flush()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.AddCommand(statusCmd)
	return cmd
}
