package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vovakirdan/chatr/internal/app"
	"github.com/vovakirdan/chatr/internal/config"
	applog "github.com/vovakirdan/chatr/internal/log"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:          "chatr",
		Short:        "Serverless chat over IP multicast on the local network",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, cmd.Flags())
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "path to the YAML config file")
	f.String("log-level", defaults.LogLevel, "log level: debug, info, warn, error")
	f.String("log-file", defaults.LogFile, "write logs to this file instead of stderr")
	f.String("settings-path", defaults.SettingsPath, "where channel settings are persisted")
	f.String("settings-backend", defaults.SettingsBackend, "settings store: file or sqlite")
	f.String("display-name", defaults.DisplayName, "default display name for new channels")
	f.String("connection-ip", defaults.ConnectionIP, "default local address to send from")
	f.Duration("settle-delay", defaults.SettleDelay, "pause between joining a group and announcing logon")
	f.Bool("autoconnect", defaults.Autoconnect, "connect saved channels at start-up")
	f.Bool("dedupe-roster", defaults.DedupeRoster, "keep each user at most once per roster")
	f.String("http-addr", defaults.HTTPAddr, "serve the local control API on this address")
	f.Duration("shutdown-timeout", defaults.ShutdownTimeout, "time allowed for an orderly shutdown")
	f.Int("event-buffer", defaults.EventBuffer, "display events buffered per subscriber")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "chatr", version)
		},
	}
}

func run(ctx context.Context, configPath string, flags *pflag.FlagSet) error {
	bootLogger := applog.New("info", os.Stderr)

	cfg, resolvedPath, err := config.Load(bootLogger, configPath, flags)
	if err != nil {
		bootLogger.Error().Err(err).Msg("load config")
		return err
	}

	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			bootLogger.Error().Err(err).Str("path", cfg.LogFile).Msg("open log file")
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger := applog.New(cfg.LogLevel, logOut)
	logger.Debug().Str("config", resolvedPath).Msg("configuration loaded")

	application, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		logger.Error().Err(err).Msg("init application")
		return err
	}

	start := time.Now()
	logger.Info().Str("version", version).Msg("starting chatr")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("chatr exited with error")
		return err
	}
	logger.Info().Dur("uptime", time.Since(start)).Msg("chatr stopped")
	return nil
}
