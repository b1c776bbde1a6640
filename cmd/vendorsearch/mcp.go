package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/vendorsearch/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve vendor search as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			opts := mcp.Options{
				Cache:   a.store,
				Spend:   a.tracker,
				Version: version,
				Logger:  log,
			}
			// Typed nils must not reach the interface fields.
			if a.budget != nil {
				opts.Budget = a.budget
			}
			if a.searchLog != nil {
				opts.SearchLog = a.searchLog
			}

			return mcp.New(a.engine, opts).Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}
