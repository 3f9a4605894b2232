package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ODCA117/ratchat/internal/app"
	"github.com/ODCA117/ratchat/internal/config"
	"github.com/ODCA117/ratchat/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "ratchat-server",
		Short:         "Multi-client chat relay over TCP and WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Bootstrap logger until the configured level is known.
			boot := log.New(overrides.LogLevel, overrides.LogFormat)

			cfg, path, err := config.Load(boot, configPath)
			if err != nil {
				boot.Error().Err(err).Msg("load config")
				return err
			}
			cfg.UpdateFrom(overrides)
			if cmd.Flags().Changed("http-addr") && overrides.HTTPAddr == "" {
				cfg.HTTPAddr = ""
			}

			logger := log.New(cfg.LogLevel, cfg.LogFormat)
			logger.Info().Str("config", path).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("init")
				return err
			}

			logger.Info().
				Str("tcp_addr", cfg.TCPAddr).
				Str("http_addr", cfg.HTTPAddr).
				Bool("echo_self", cfg.EchoSelf).
				Msg("starting ratchat server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return fmt.Errorf("run: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml (default: $RATCHAT_CONFIG_DEFAULT_PATH or ./config.yaml)")
	flags.StringVar(&overrides.TCPAddr, "tcp-addr", "", "TCP listen address")
	flags.StringVar(&overrides.HTTPAddr, "http-addr", "", "HTTP admin listen address (empty disables)")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log format: console or json")
	flags.StringVar(&overrides.DatabasePath, "database", "", "session journal database path")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.BoolVar(&overrides.EchoSelf, "echo-self", false, "deliver a client's own messages back to it")

	return cmd
}
