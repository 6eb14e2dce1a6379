package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/darwin/pkg/cli"
	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/engine"
	"mercator-hq/darwin/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		listen   string
		logLevel string
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Darwin HTTP server",
		Long: `Serve starts the HTTP API: chat, feedback, the individual pipeline stages,
ticket listing, health checks and Prometheus metrics.

When a config file is given it is watched for changes; a valid new
configuration rebuilds the engine without dropping in-flight requests.
Listener settings only change on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Initialize(a.cfgFile); err != nil {
				return cli.NewConfigError("", err.Error())
			}
			cfg := config.GetConfig()
			if listen != "" {
				cfg.Server.ListenAddress = listen
			}
			if logLevel != "" {
				cfg.Telemetry.Logging.Level = logLevel
			}
			if a.verbose {
				cfg.Telemetry.Logging.Level = "debug"
			}

			tel, flush, err := a.telemetry(cfg)
			if err != nil {
				return err
			}
			defer flush()
			logger := tel.Logger

			ctx, cancel := cli.SetupSignalHandler(cmd.Context())
			defer cancel()

			build := func(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
				return engine.New(ctx, cfg, tel)
			}
			eng, err := build(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to build engine: %w", err)
			}
			srv := server.New(eng, server.Options{
				Logger:  logger,
				Metrics: tel.Metrics,
				Version: Version,
				Build:   build,
			})
			defer func() {
				if err := srv.Engine().Close(); err != nil {
					logger.Warn("failed to close engine", "error", err)
				}
			}()

			if a.cfgFile != "" && watch {
				config.OnReload(func(next *config.Config) {
					next.Server = cfg.Server
					if err := srv.Reload(ctx, next); err != nil {
						logger.Error("config reload rejected", "error", err)
						return
					}
					logger.Info("configuration reloaded", "path", a.cfgFile)
				})
				w, err := config.NewWatcher(a.cfgFile, 0, logger)
				if err != nil {
					return err
				}
				defer func() { _ = w.Stop() }()
				go func() {
					if err := w.Watch(ctx, func() error { return config.ReloadConfig(a.cfgFile) }); err != nil {
						logger.Error("config watcher stopped", "error", err)
					}
				}()
			}

			logger.Info("starting darwin",
				"version", Version,
				"listen", cfg.Server.ListenAddress,
				"store", cfg.Store.Backend,
				"events", cfg.Events.Backend,
			)
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the config file when it changes")
	return cmd
}
