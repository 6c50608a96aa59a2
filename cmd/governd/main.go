// Command governd runs the AI resource governance service: a registry of
// providers, models and tool assignments with an immutable audit trail,
// usage metering and budget alerts.
package main

import (
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/modelfleet/governd/internal/app"
	"github.com/modelfleet/governd/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "governd",
		Short:         "AI resource governance service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "path to the config file")

	root.AddCommand(serveCommand(), migrateCommand())

	if err := root.Execute(); err != nil {
		log.WithError(err).Fatal("governd exited")
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, errLoad := config.Load(configPath)
			if errLoad != nil {
				return errLoad
			}
			setupLogging(cfg.Logging)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.RunServer(ctx, cfg)
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, errLoad := config.Load(configPath)
			if errLoad != nil {
				return errLoad
			}
			setupLogging(cfg.Logging)
			return app.Migrate(cmd.Context(), cfg)
		},
	}
}

// setupLogging configures logrus level and output, with file rotation
// when a log file is configured.
func setupLogging(cfg config.LoggingConfig) {
	level, errParse := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errParse != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.File == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}
