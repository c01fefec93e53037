package config

import "time"

// Default returns a ServerConfig with every documented default filled in.
// The result validates as is. No function layers a partially-populated
// document over these values: a document decoded from JSON (persisted
// snapshot or control-queue payload) keeps zero values for the fields it
// omits, and Validate judges it as decoded.
func Default() *ServerConfig {
	return &ServerConfig{
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
			Queue:    "logs",
		},
		TimescaleDB: TimescaleDBConfig{
			Enabled:          true,
			Host:             "localhost",
			Port:             5432,
			User:             "logger",
			Password:         "logger",
			Database:         "logger",
			HealthCheckEvery: 30 * time.Minute,
		},
		Console: ConsoleConfig{
			Enabled: true,
			Format:  "[{project}] [{timestamp}] [{level}] {module}.{function}: {message} [{code}]",
			Styles: LevelStyles{
				Info:    "bold magenta",
				Warning: "bold yellow",
				Error:   "bold red",
				Fatal:   "bold white on red",
				Debug:   "dim cyan",
				Alert:   "bold magenta",
				Unknown: "bold white on red",
			},
			TimeFormat: "2006-01-02 15:04:05",
			TimeZone:   "UTC",
		},
		Files: FilesConfig{
			Enabled:          true,
			RootDirectory:    "./logs",
			ProjectDirectory: "{project}",
			Filename:         "log_{project}_{date}.log",
			DateFileFormat:   "20060102-150405",
			LogFormat:        "[{timestamp}] [{level}] {module}.{function}: {message} [{code}]",
			DateLogFormat:    "2006-01-02 15:04:05",
			TimeZone:         "UTC",
			Rotation: RotationConfig{
				Trigger: RotationLines,
				Time:    3600,
				Size:    10 * 1024 * 1024,
				Daily:   "00:00",
				Lines:   10000,
			},
			Archive: ArchiveConfig{
				Enabled:          true,
				Type:             ArchiveZip,
				CompressionLevel: 6,
				Directory:        "archive",
				Trigger:          ArchiveCount,
				Count:            10,
				Age:              7 * 24 * 3600,
			},
		},
		API: APIConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    8080,
		},
	}
}
