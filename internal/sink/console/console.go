// Package console implements the Console Sink: it renders a Record through
// a user-configurable template and writes the styled line to stdout.
package console

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/acaciaworks/logship/internal/config"
	"github.com/acaciaworks/logship/internal/record"
)

var placeholder = strings.NewReplacer(
	"{project}", "\x00project\x00",
	"{timestamp}", "\x00timestamp\x00",
	"{level}", "\x00level\x00",
	"{module}", "\x00module\x00",
	"{function}", "\x00function\x00",
	"{message}", "\x00message\x00",
	"{code}", "\x00code\x00",
)

// Sink renders records to stdout using the configured format and
// per-level styles. Render errors are logged and swallowed per spec.md
// §4.2 — the Console Sink must never abort the dispatch pipeline.
type Sink struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Sink {
	return &Sink{log: log}
}

// Write renders r using cfg and prints it to stdout. Unknown
// placeholders in the format string are left in place verbatim; the
// timestamp is converted into cfg.TimeZone before formatting.
func (s *Sink) Write(cfg config.ConsoleConfig, r *record.Record) {
	line, err := render(cfg, r)
	if err != nil {
		s.log.Error().Err(err).Str("project", r.Project).Msg("console sink: render failed, dropping line")
		return
	}

	style := cfg.Styles.Style(string(r.Level))
	fmt.Println(applyStyle(style, line))
}

func render(cfg config.ConsoleConfig, r *record.Record) (string, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return "", fmt.Errorf("console sink: load time zone %q: %w", cfg.TimeZone, err)
	}

	fields := map[string]string{
		"project":   r.Project,
		"timestamp": r.Timestamp.In(loc).Format(cfg.TimeFormat),
		"level":     string(r.Level),
		"module":    r.Module,
		"function":  r.Function,
		"message":   r.Message,
		"code":      strconv.Itoa(r.Code),
	}

	marked := placeholder.Replace(cfg.Format)
	var b strings.Builder
	for marked != "" {
		i := strings.IndexByte(marked, 0)
		if i < 0 {
			b.WriteString(marked)
			break
		}
		b.WriteString(marked[:i])
		marked = marked[i+1:]
		j := strings.IndexByte(marked, 0)
		if j < 0 {
			// Unterminated marker: shouldn't happen, treat rest as literal.
			b.WriteString(marked)
			break
		}
		key := marked[:j]
		marked = marked[j+1:]
		if v, ok := fields[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString("{" + key + "}")
		}
	}
	return b.String(), nil
}

// applyStyle parses a space-separated style string ("bold white on red")
// into fatih/color attributes and applies them. Unknown tokens are
// ignored so a typo in config degrades to unstyled output, not a crash.
func applyStyle(style, line string) string {
	if style == "" {
		return line
	}

	tokens := strings.Fields(strings.ToLower(style))
	var attrs []color.Attribute
	onBackground := false
	for _, tok := range tokens {
		if tok == "on" {
			onBackground = true
			continue
		}
		if a, ok := attrFor(tok, onBackground); ok {
			attrs = append(attrs, a)
		}
	}
	if len(attrs) == 0 {
		return line
	}
	return color.New(attrs...).Sprint(line)
}

func attrFor(token string, background bool) (color.Attribute, bool) {
	switch token {
	case "bold":
		return color.Bold, true
	case "dim", "faint":
		return color.Faint, true
	case "underline":
		return color.Underline, true
	}

	fg := map[string]color.Attribute{
		"black": color.FgBlack, "red": color.FgRed, "green": color.FgGreen,
		"yellow": color.FgYellow, "blue": color.FgBlue, "magenta": color.FgMagenta,
		"cyan": color.FgCyan, "white": color.FgWhite,
	}
	bg := map[string]color.Attribute{
		"black": color.BgBlack, "red": color.BgRed, "green": color.BgGreen,
		"yellow": color.BgYellow, "blue": color.BgBlue, "magenta": color.BgMagenta,
		"cyan": color.BgCyan, "white": color.BgWhite,
	}

	if background {
		if a, ok := bg[token]; ok {
			return a, true
		}
		return 0, false
	}
	if a, ok := fg[token]; ok {
		return a, true
	}
	return 0, false
}
