package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/acaciaworks/logship/internal/config"
	"github.com/acaciaworks/logship/internal/consumer"
	"github.com/acaciaworks/logship/internal/logging"
	"github.com/acaciaworks/logship/internal/sink/console"
	"github.com/acaciaworks/logship/internal/sink/database"
	"github.com/acaciaworks/logship/internal/sink/file"
	"github.com/acaciaworks/logship/internal/supervisor"
)

var logLevel string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "diagnostic log level")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.New(logLevel)

	manager, err := config.NewManager(snapshotPath(), environmentConfig(), logging.Named(log, "config"))
	if err != nil {
		return fmt.Errorf("initialize config manager: %w", err)
	}
	cfg := manager.Get()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	consoleSink := console.New(logging.Named(log, "console"))

	// databaseSink lazily owns its underlying pool: it starts empty when
	// TimescaleDB is disabled and is rebuilt in place by Reconfigure
	// whenever a control-queue reload changes the connection target, so
	// the Consumer never holds a stale pgxpool.Pool.
	databaseSink := database.NewManager(logging.Named(log, "database"))
	if err := databaseSink.Reconfigure(ctx, cfg.TimescaleDB); err != nil {
		return fmt.Errorf("connect database sink: %w", err)
	}

	fileSink := file.New(cfg.Files, logging.Named(log, "file"))

	c := consumer.New(manager, consoleSink, databaseSink, fileSink, logging.Named(log, "consumer"))
	manager.Subscribe(func(old, next *config.ServerConfig) {
		fileSink.Reconfigure(next.Files)
		if err := databaseSink.Reconfigure(ctx, next.TimescaleDB); err != nil {
			log.Error().Err(err).Msg("database sink: reconfigure failed, keeping previous connection")
		}
	})

	sup := supervisor.New(c, logging.Named(log, "supervisor"))
	code := sup.Run(ctx)
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
