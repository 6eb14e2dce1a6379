package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/darwin/pkg/cli"
	"mercator-hq/darwin/pkg/config"
	"mercator-hq/darwin/pkg/engine"
	"mercator-hq/darwin/pkg/telemetry/logging"
	"mercator-hq/darwin/pkg/telemetry/metrics"
	"mercator-hq/darwin/pkg/telemetry/tracing"
)

// app holds the global flags shared by every command.
type app struct {
	cfgFile string
	output  string
	verbose bool
	stderr  io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}
	root := &cobra.Command{
		Use:   "darwin",
		Short: "Darwin - self-evolving agent genomes",
		Long: `Darwin serves LLM agents from versioned genomes. A critic reviews every
conversation; failed conversations breed challenger genomes, a judge picks
the best one and a supervisor audits and promotes it. Failures that survive
every retry become tickets for a human.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path (defaults and DARWIN_* environment when empty)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", string(cli.FormatText), "output format: text, json, yaml or csv")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newVersionCmd(),
		newServeCmd(a),
		newChatCmd(a),
		newFeedbackCmd(a),
		newCriticCmd(a),
		newEvolveCmd(a),
		newLineageCmd(a),
		newTicketsCmd(a),
		newGenomeCmd(a),
		newAuditCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(a.cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	if a.verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// telemetry builds the process-wide logger, metrics and tracer. The
// returned function flushes the tracer.
func (a *app) telemetry(cfg *config.Config) (engine.Telemetry, func(), error) {
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, a.stderr))
	if err != nil {
		return engine.Telemetry{}, nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return engine.Telemetry{}, nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}
	tel := engine.Telemetry{
		Logger:  logger,
		Metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry()),
		Tracer:  tracer,
	}
	flush := func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}
	return tel, flush, nil
}

// open loads the configuration and builds an engine. The returned function
// releases both.
func (a *app) open(ctx context.Context) (*engine.Engine, func(), error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	tel, flush, err := a.telemetry(cfg)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(ctx, cfg, tel)
	if err != nil {
		flush()
		return nil, nil, err
	}
	closeAll := func() {
		if err := eng.Close(); err != nil {
			tel.Logger.Warn("failed to close engine", "error", err)
		}
		flush()
	}
	return eng, closeAll, nil
}

// print writes a command result. Text output of structured results is
// rendered as YAML.
func (a *app) print(cmd *cobra.Command, data any) error {
	format := cli.OutputFormat(a.output)
	if format == cli.FormatText {
		switch data.(type) {
		case *cli.Table, string:
		default:
			format = cli.FormatYAML
		}
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}
