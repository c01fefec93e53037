package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/acaciaworks/logship/internal/errs"
)

var projectTemplatePattern = regexp.MustCompile(`\{project\}`)

// Validate checks a ServerConfig as a whole. Per spec.md §3, a config is
// either fully accepted or fully rejected — this never mutates cfg.
func Validate(cfg *ServerConfig) error {
	if err := validatePort(cfg.RabbitMQ.Port); err != nil {
		return wrap("rabbitmq.port", err)
	}
	if cfg.RabbitMQ.Queue == "" {
		return wrap("rabbitmq.queue", fmt.Errorf("must not be empty"))
	}

	if cfg.TimescaleDB.Enabled {
		if err := validatePort(cfg.TimescaleDB.Port); err != nil {
			return wrap("timescaledb.port", err)
		}
		if cfg.TimescaleDB.HealthCheckEvery <= 0 {
			return wrap("timescaledb.health_check_every", fmt.Errorf("must be positive"))
		}
	}

	if cfg.Console.Enabled {
		if _, err := time.LoadLocation(cfg.Console.TimeZone); err != nil {
			return wrap("console.time_zone", err)
		}
	}

	if cfg.Files.Enabled {
		if cfg.Files.RootDirectory == "" {
			return wrap("files.root_directory", fmt.Errorf("must not be empty"))
		}
		if !projectTemplatePattern.MatchString(cfg.Files.Filename) {
			return wrap("files.filename", fmt.Errorf("must contain {project}"))
		}
		if _, err := time.LoadLocation(cfg.Files.TimeZone); err != nil {
			return wrap("files.time_zone", err)
		}
		if err := validateRotation(cfg.Files.Rotation); err != nil {
			return wrap("files.rotation", err)
		}
		if cfg.Files.Archive.Enabled {
			if err := validateArchive(cfg.Files.Archive); err != nil {
				return wrap("files.archive", err)
			}
		}
	}

	if cfg.API.Enabled {
		if err := validatePort(cfg.API.Port); err != nil {
			return wrap("api.port", err)
		}
	}

	return nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range [1,65535]", port)
	}
	return nil
}

func validateRotation(r RotationConfig) error {
	switch r.Trigger {
	case RotationTime:
		if r.Time < 3600 {
			return fmt.Errorf("time threshold must be >= 3600 seconds")
		}
	case RotationSize:
		if r.Size < 1024 {
			return fmt.Errorf("size threshold must be >= 1024 bytes")
		}
	case RotationDaily:
		if !dailyPattern.MatchString(r.Daily) {
			return fmt.Errorf("daily threshold must be HH:MM")
		}
	case RotationLines:
		if r.Lines < 1 {
			return fmt.Errorf("lines threshold must be >= 1")
		}
	default:
		return fmt.Errorf("unknown trigger %q", r.Trigger)
	}
	return nil
}

var dailyPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

func validateArchive(a ArchiveConfig) error {
	switch a.Type {
	case ArchiveZip, ArchiveGz, ArchiveBz2, ArchiveXz, ArchiveTar:
	default:
		return fmt.Errorf("unknown archive type %q", a.Type)
	}
	if a.CompressionLevel < 0 || a.CompressionLevel > 9 {
		return fmt.Errorf("compression_level must be in [0,9]")
	}
	if a.Directory == "" {
		return fmt.Errorf("directory must not be empty")
	}
	switch a.Trigger {
	case ArchiveCount:
		if a.Count < 1 {
			return fmt.Errorf("count must be >= 1")
		}
	case ArchiveAge:
		if a.Age < 24400 {
			return fmt.Errorf("age must be >= 24400 seconds")
		}
	default:
		return fmt.Errorf("unknown archive trigger %q", a.Trigger)
	}
	return nil
}

func wrap(field string, cause error) error {
	return &errs.ConfigUpdateError{Reason: field, Cause: cause}
}
