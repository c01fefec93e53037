// Package commands wires the logship CLI: cobra for subcommands, viper
// for environment-derived configuration, matching the root.go pattern
// this project started from.
package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acaciaworks/logship/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "logship",
	Short: "Centralized log ingestion and fan-out service",
	Long: `logship consumes structured log records from a message broker,
validates them, and fans them out to a database, rotated log files, and a
styled console stream, with live reconfiguration over a control queue.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a persisted config.json (default ./config.json)")
	rootCmd.AddCommand(serveCmd, validateConfigCmd)
}

func initViper() {
	viper.SetEnvPrefix("")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("rabbitmq.host", "RABBITMQ_HOST")
	viper.BindEnv("rabbitmq.port", "RABBITMQ_PORT")
	viper.BindEnv("rabbitmq.user", "RABBITMQ_USER")
	viper.BindEnv("rabbitmq.password", "RABBITMQ_PASSWORD")
	viper.BindEnv("rabbitmq.queue", "RABBITMQ_QUEUE")

	viper.BindEnv("timescaledb.enabled", "TIMESCALEDB_ENABLED")
	viper.BindEnv("timescaledb.host", "TIMESCALEDB_HOST")
	viper.BindEnv("timescaledb.port", "TIMESCALEDB_PORT")
	viper.BindEnv("timescaledb.user", "TIMESCALEDB_USER")
	viper.BindEnv("timescaledb.password", "TIMESCALEDB_PASSWORD")
	viper.BindEnv("timescaledb.database", "TIMESCALEDB_DATABASE")

	viper.BindEnv("console.enabled", "CONSOLE_ENABLED")
	viper.BindEnv("console.format", "CONSOLE_FORMAT")
	viper.BindEnv("console.time_zone", "CONSOLE_TIME_ZONE")

	viper.BindEnv("files.enabled", "FILES_ENABLED")
	viper.BindEnv("files.root_directory", "FILES_ROOT_DIRECTORY")

	viper.BindEnv("api.enabled", "API_ENABLED")
	viper.BindEnv("api.host", "API_HOST")
	viper.BindEnv("api.port", "API_PORT")
}

// snapshotPath returns the configured persisted-config location.
func snapshotPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return "./config.json"
}

// environmentConfig layers bound environment variables over Default(),
// used as the fallback document when no persisted config.json exists
// yet, per spec.md §4.6.
func environmentConfig() *config.ServerConfig {
	cfg := config.Default()

	if v := viper.GetString("rabbitmq.host"); v != "" {
		cfg.RabbitMQ.Host = v
	}
	if v := viper.GetInt("rabbitmq.port"); v != 0 {
		cfg.RabbitMQ.Port = v
	}
	if v := viper.GetString("rabbitmq.user"); v != "" {
		cfg.RabbitMQ.User = v
	}
	if v := viper.GetString("rabbitmq.password"); v != "" {
		cfg.RabbitMQ.Password = v
	}
	if v := viper.GetString("rabbitmq.queue"); v != "" {
		cfg.RabbitMQ.Queue = v
	}

	if viper.IsSet("timescaledb.enabled") {
		cfg.TimescaleDB.Enabled = viper.GetBool("timescaledb.enabled")
	}
	if v := viper.GetString("timescaledb.host"); v != "" {
		cfg.TimescaleDB.Host = v
	}
	if v := viper.GetInt("timescaledb.port"); v != 0 {
		cfg.TimescaleDB.Port = v
	}
	if v := viper.GetString("timescaledb.user"); v != "" {
		cfg.TimescaleDB.User = v
	}
	if v := viper.GetString("timescaledb.password"); v != "" {
		cfg.TimescaleDB.Password = v
	}
	if v := viper.GetString("timescaledb.database"); v != "" {
		cfg.TimescaleDB.Database = v
	}

	if viper.IsSet("console.enabled") {
		cfg.Console.Enabled = viper.GetBool("console.enabled")
	}
	if v := viper.GetString("console.format"); v != "" {
		cfg.Console.Format = v
	}
	if v := viper.GetString("console.time_zone"); v != "" {
		cfg.Console.TimeZone = v
	}

	if viper.IsSet("files.enabled") {
		cfg.Files.Enabled = viper.GetBool("files.enabled")
	}
	if v := viper.GetString("files.root_directory"); v != "" {
		cfg.Files.RootDirectory = v
	}

	if viper.IsSet("api.enabled") {
		cfg.API.Enabled = viper.GetBool("api.enabled")
	}
	if v := viper.GetString("api.host"); v != "" {
		cfg.API.Host = v
	}
	if v := viper.GetInt("api.port"); v != 0 {
		cfg.API.Port = v
	}

	return cfg
}
