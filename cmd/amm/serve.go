package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPool/internal/api"
	"ammPool/internal/events"
)

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pool, position, role and event queries over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				// Mutations run in other processes: events come from the shared events
				// file and gauges from the store.
				var source api.Events = a.events
				if a.history != nil {
					source = events.NewReplay(a.history, a.logger)
				}
				pools, err := a.engine.RefreshMetrics(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("pool gauges loaded", zap.Int("pools", pools), zap.Duration("refresh", a.cfg.MetricsRefresh))
				go a.engine.RefreshMetricsEvery(ctx, a.cfg.MetricsRefresh)

				server := api.NewServer(a.engine, a.access, source, a.registry, a.logger)
				return server.ListenAndServe(ctx, a.cfg.Listen)
			})
		},
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().Duration("metrics-refresh", 15*time.Second, "interval for republishing pool gauges from the store (0 disables)")
	return cmd
}
