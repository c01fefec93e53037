// Package logging sets up the process diagnostic stream: a uvicorn-like
// compact console format on stderr, with no stack traces below
// error/fatal. Every component is handed a zerolog.Logger scoped with its
// own "name" field rather than reaching for a package-level global.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// New builds the root logger, rendering roughly
// "[HH:MM:SS] LEVEL: name - message" on stderr.
func New(level string) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
		NoColor:    !isTTY(os.Stderr),
	}
	w.FormatTimestamp = func(i interface{}) string {
		s, ok := i.(string)
		if !ok {
			return ""
		}
		t, err := time.Parse(zerolog.TimeFieldFormat, s)
		if err != nil {
			return "[" + s + "]"
		}
		return "[" + t.Format("15:04:05") + "]"
	}
	w.FormatLevel = func(i interface{}) string {
		s, _ := i.(string)
		return strings.ToUpper(s) + ":"
	}
	w.FormatFieldName = func(i interface{}) string {
		s, _ := i.(string)
		if s == "name" {
			return ""
		}
		return s + "="
	}
	w.FormatPrepare = func(evt map[string]interface{}) error {
		if name, ok := evt["name"].(string); ok && name != "" {
			msg, _ := evt[zerolog.MessageFieldName].(string)
			evt[zerolog.MessageFieldName] = name + " - " + msg
			delete(evt, "name")
		}
		return nil
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Named returns a child logger scoped to one component name, rendered as
// the "name - message" portion of the compact format.
func Named(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("name", name).Logger()
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
