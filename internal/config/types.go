// Package config holds the ServerConfig document, its defaults and
// validation, and the Config Manager that owns the live snapshot.
package config

import "time"

// ServerConfig is the nested, immutable control document. A value of this
// type is never mutated in place; ConfigManager.Apply always replaces the
// whole snapshot.
type ServerConfig struct {
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq" mapstructure:"rabbitmq" json:"rabbitmq"`
	TimescaleDB TimescaleDBConfig `yaml:"timescaledb" mapstructure:"timescaledb" json:"timescaledb"`
	Console     ConsoleConfig     `yaml:"console" mapstructure:"console" json:"console"`
	Files       FilesConfig       `yaml:"files" mapstructure:"files" json:"files"`
	API         APIConfig         `yaml:"api" mapstructure:"api" json:"api"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host" mapstructure:"host" json:"host"`
	Port     int    `yaml:"port" mapstructure:"port" json:"port"`
	User     string `yaml:"user" mapstructure:"user" json:"user"`
	Password string `yaml:"password" mapstructure:"password" json:"password"`
	Queue    string `yaml:"queue" mapstructure:"queue" json:"queue"`
}

type TimescaleDBConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Host             string        `yaml:"host" mapstructure:"host" json:"host"`
	Port             int           `yaml:"port" mapstructure:"port" json:"port"`
	User             string        `yaml:"user" mapstructure:"user" json:"user"`
	Password         string        `yaml:"password" mapstructure:"password" json:"password"`
	Database         string        `yaml:"database" mapstructure:"database" json:"database"`
	HealthCheckEvery time.Duration `yaml:"health_check_every" mapstructure:"health_check_every" json:"health_check_every"`
}

type LevelStyles struct {
	Info    string `yaml:"info" mapstructure:"info" json:"info"`
	Warning string `yaml:"warning" mapstructure:"warning" json:"warning"`
	Error   string `yaml:"error" mapstructure:"error" json:"error"`
	Fatal   string `yaml:"fatal" mapstructure:"fatal" json:"fatal"`
	Debug   string `yaml:"debug" mapstructure:"debug" json:"debug"`
	Alert   string `yaml:"alert" mapstructure:"alert" json:"alert"`
	Unknown string `yaml:"unknown" mapstructure:"unknown" json:"unknown"`
}

// Style returns the configured style string for a level, falling back to
// Unknown the way spec.md §4.2 requires.
func (l LevelStyles) Style(level string) string {
	switch level {
	case "info":
		return l.Info
	case "warning":
		return l.Warning
	case "error":
		return l.Error
	case "fatal":
		return l.Fatal
	case "debug":
		return l.Debug
	case "alert":
		return l.Alert
	default:
		return l.Unknown
	}
}

type ConsoleConfig struct {
	Enabled    bool        `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Format     string      `yaml:"format" mapstructure:"format" json:"format"`
	Styles     LevelStyles `yaml:"styles" mapstructure:"styles" json:"styles"`
	TimeFormat string      `yaml:"time_format" mapstructure:"time_format" json:"time_format"`
	TimeZone   string      `yaml:"time_zone" mapstructure:"time_zone" json:"time_zone"`
}

// RotationTrigger selects which predicate in the File Sink's rotation
// state machine is active. Only one is active per config.
type RotationTrigger string

const (
	RotationTime  RotationTrigger = "time"
	RotationSize  RotationTrigger = "size"
	RotationDaily RotationTrigger = "daily"
	RotationLines RotationTrigger = "lines"
)

type RotationConfig struct {
	Trigger RotationTrigger `yaml:"trigger" mapstructure:"trigger" json:"trigger"`
	Time    int64           `yaml:"time" mapstructure:"time" json:"time"`   // seconds, >= 3600
	Size    int64           `yaml:"size" mapstructure:"size" json:"size"`   // bytes, >= 1024
	Daily   string           `yaml:"daily" mapstructure:"daily" json:"daily"` // "HH:MM"
	Lines   int64           `yaml:"lines" mapstructure:"lines" json:"lines"`
}

// ArchiveTrigger selects which archival sweep predicate applies.
type ArchiveTrigger string

const (
	ArchiveAge   ArchiveTrigger = "age"
	ArchiveCount ArchiveTrigger = "count"
)

// ArchiveType selects the compression codec for archived files.
type ArchiveType string

const (
	ArchiveZip ArchiveType = "zip"
	ArchiveGz  ArchiveType = "gz"
	ArchiveBz2 ArchiveType = "bz2"
	ArchiveXz  ArchiveType = "xz"
	ArchiveTar ArchiveType = "tar"
)

type ArchiveConfig struct {
	Enabled          bool           `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Type             ArchiveType    `yaml:"type" mapstructure:"type" json:"type"`
	CompressionLevel int            `yaml:"compression_level" mapstructure:"compression_level" json:"compression_level"`
	Directory        string         `yaml:"directory" mapstructure:"directory" json:"directory"`
	Trigger          ArchiveTrigger `yaml:"trigger" mapstructure:"trigger" json:"trigger"`
	Count            int64          `yaml:"count" mapstructure:"count" json:"count"`
	Age              int64          `yaml:"age" mapstructure:"age" json:"age"` // seconds, >= 24400
}

type FilesConfig struct {
	Enabled            bool           `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	RootDirectory      string         `yaml:"root_directory" mapstructure:"root_directory" json:"root_directory"`
	ProjectDirectory   string         `yaml:"project_directory" mapstructure:"project_directory" json:"project_directory"` // template, placeholder {project}
	Filename           string         `yaml:"filename" mapstructure:"filename" json:"filename"`                           // template, placeholders {project} {date}
	DateFileFormat     string         `yaml:"date_file_format" mapstructure:"date_file_format" json:"date_file_format"`
	LogFormat          string         `yaml:"log_format" mapstructure:"log_format" json:"log_format"`
	DateLogFormat      string         `yaml:"date_log_format" mapstructure:"date_log_format" json:"date_log_format"`
	TimeZone           string         `yaml:"time_zone" mapstructure:"time_zone" json:"time_zone"`
	Rotation           RotationConfig `yaml:"rotation" mapstructure:"rotation" json:"rotation"`
	Archive            ArchiveConfig  `yaml:"archive" mapstructure:"archive" json:"archive"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Host    string `yaml:"host" mapstructure:"host" json:"host"`
	Port    int    `yaml:"port" mapstructure:"port" json:"port"`
}
