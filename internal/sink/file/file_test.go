package file

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/acaciaworks/logship/internal/config"
	"github.com/acaciaworks/logship/internal/record"
)

func testConfig(root string) config.FilesConfig {
	return config.FilesConfig{
		Enabled:          true,
		RootDirectory:    root,
		ProjectDirectory: "{project}",
		Filename:         "log_{project}_{date}.log",
		DateFileFormat:   "20060102150405.000000000",
		LogFormat:        "[{timestamp}] [{level}] {module}.{function}: {message} [{code}]",
		DateLogFormat:    "2006-01-02 15:04:05",
		TimeZone:         "UTC",
		Rotation: config.RotationConfig{
			Trigger: config.RotationLines,
			Lines:   3,
		},
		Archive: config.ArchiveConfig{
			Enabled:          true,
			Type:             config.ArchiveZip,
			CompressionLevel: 6,
			Directory:        "archive",
			Trigger:          config.ArchiveCount,
			Count:            1,
		},
	}
}

func sampleRecord(project string) *record.Record {
	return &record.Record{
		Project:   project,
		Timestamp: time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
		Level:     record.LevelInfo,
		Module:    "billing",
		Function:  "charge",
		Message:   "ok",
		Code:      0,
	}
}

func discardLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestWriteCreatesFileWithHeader(t *testing.T) {
	dir := t.TempDir()
	s := New(testConfig(dir), discardLogger())
	s.Write(sampleRecord("billing"))

	projectDir := filepath.Join(dir, "billing")
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".log") {
			found = true
			data, err := os.ReadFile(filepath.Join(projectDir, e.Name()))
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(data), "LOG FILE START") {
				t.Fatal("expected header in active file")
			}
			if !strings.Contains(string(data), "billing.charge: ok") {
				t.Fatal("expected the record line to be written")
			}
		}
	}
	if !found {
		t.Fatal("expected an active .log file to exist")
	}
}

func TestWriteRotatesOnLineCount(t *testing.T) {
	dir := t.TempDir()
	s := New(testConfig(dir), discardLogger())

	for i := 0; i < 4; i++ {
		s.Write(sampleRecord("billing"))
		time.Sleep(2 * time.Millisecond) // ensure distinct filename timestamps
	}

	projectDir := filepath.Join(dir, "billing")
	entries, _ := os.ReadDir(projectDir)
	var logFiles int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".log") {
			logFiles++
		}
	}
	if logFiles < 2 {
		t.Fatalf("expected rotation to produce more than one file, got %d", logFiles)
	}
}

func TestCloseWritesFooter(t *testing.T) {
	dir := t.TempDir()
	s := New(testConfig(dir), discardLogger())
	s.Write(sampleRecord("billing"))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	projectDir := filepath.Join(dir, "billing")
	entries, _ := os.ReadDir(projectDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".log") {
			data, _ := os.ReadFile(filepath.Join(projectDir, e.Name()))
			if !strings.Contains(string(data), "LOG FILE END") {
				t.Fatal("expected footer after Close")
			}
		}
	}
}

func TestUnknownProjectCreatesNewState(t *testing.T) {
	dir := t.TempDir()
	s := New(testConfig(dir), discardLogger())
	s.Write(sampleRecord("a"))
	s.Write(sampleRecord("b"))

	for _, p := range []string{"a", "b"} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Fatalf("expected project directory for %q: %v", p, err)
		}
	}
}
