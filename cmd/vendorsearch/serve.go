package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/metrics"
	"github.com/pario-ai/vendorsearch/pkg/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the vendor search HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if listen != "" {
				cfg.Listen = listen
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg, log, m)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn("shutdown cleanup failed", zap.Error(err))
				}
			}()

			srv := server.New(a.engine, server.Options{
				Listen:  cfg.Listen,
				Cache:   a.store,
				Metrics: m,
				Logger:  log,
			})

			log.Info("starting vendorsearch",
				zap.String("config", configPath),
				zap.Int("cache_generations", len(cfg.Cache.Generations)),
				zap.Bool("synthetic_fallback", cfg.Provider.AllowSyntheticFallback),
			)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}
