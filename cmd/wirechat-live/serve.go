package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-live/internal/app"
	"github.com/vovakirdan/wirechat-live/internal/config"
	"github.com/vovakirdan/wirechat-live/internal/log"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		RunE:  runServe,
	}
	cmd.Flags().String("config", "", "path to config.yaml (created with defaults when missing)")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error")
	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().String("mode", "", "wakeup mode: local|distributed")
	cmd.Flags().String("store", "", "store backend: memory|sqlite|pebble|redis")
	return cmd
}

// flagOverrides collects the serve flags that were set explicitly.
func flagOverrides(cmd *cobra.Command) config.Config {
	var o config.Config
	o.LogLevel, _ = cmd.Flags().GetString("log-level")
	o.Addr, _ = cmd.Flags().GetString("addr")
	o.Mode, _ = cmd.Flags().GetString("mode")
	o.Store.Backend, _ = cmd.Flags().GetString("store")
	return o
}

func runServe(cmd *cobra.Command, _ []string) error {
	bootLogger := log.New("info", "console")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, resolved, err := config.Load(bootLogger, configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(flagOverrides(cmd))

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", resolved).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Str("mode", cfg.Mode).Str("store", cfg.Store.Backend).Msg("starting wirechat-live")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
