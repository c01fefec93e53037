package console

import (
	"testing"
	"time"

	"github.com/acaciaworks/logship/internal/config"
	"github.com/acaciaworks/logship/internal/record"
)

func sampleRecord() *record.Record {
	return &record.Record{
		Project:   "billing",
		Timestamp: time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
		Level:     record.LevelError,
		Module:    "charges",
		Function:  "capture",
		Message:   "card declined",
		Code:      402,
	}
}

func TestRenderSubstitutesAllPlaceholders(t *testing.T) {
	cfg := config.ConsoleConfig{
		Format:     "[{project}] [{timestamp}] [{level}] {module}.{function}: {message} [{code}]",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
	}

	got, err := render(cfg, sampleRecord())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "[billing] [2026-07-30 12:00:00] [error] charges.capture: card declined [402]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderLeavesUnknownPlaceholdersLiteral(t *testing.T) {
	cfg := config.ConsoleConfig{
		Format:     "{project} {unknown} {message}",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
	}

	got, err := render(cfg, sampleRecord())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "billing {unknown} card declined"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderConvertsTimeZone(t *testing.T) {
	cfg := config.ConsoleConfig{
		Format:     "{timestamp}",
		TimeFormat: "15:04:05",
		TimeZone:   "America/New_York",
	}

	got, err := render(cfg, sampleRecord())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// 12:00 UTC on 2026-07-30 is 08:00 EDT.
	if got != "08:00:00" {
		t.Fatalf("got %q, want 08:00:00", got)
	}
}

func TestRenderRejectsBadTimeZone(t *testing.T) {
	cfg := config.ConsoleConfig{Format: "{message}", TimeFormat: time.RFC3339, TimeZone: "Not/AZone"}
	if _, err := render(cfg, sampleRecord()); err == nil {
		t.Fatal("expected an error for an invalid time zone")
	}
}

func TestApplyStyleUnknownTokenDegradesGracefully(t *testing.T) {
	out := applyStyle("bogus-style", "line")
	if out != "line" {
		t.Fatalf("expected unstyled passthrough, got %q", out)
	}
}

func TestApplyStyleEmptyIsPassthrough(t *testing.T) {
	if got := applyStyle("", "line"); got != "line" {
		t.Fatalf("got %q", got)
	}
}
