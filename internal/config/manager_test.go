package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func discardLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestNewManagerPersistsInitialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	m, err := NewManager(path, Default(), discardLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected config.json to be written: %v", err)
	}
	var onDisk ServerConfig
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("persisted config.json did not decode: %v", err)
	}
	if onDisk.RabbitMQ.Queue != m.Get().RabbitMQ.Queue {
		t.Fatalf("persisted snapshot does not match Get()")
	}
}

func TestNewManagerPrefersPersistedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	prior := Default()
	prior.RabbitMQ.Queue = "prior-queue"
	data, _ := json.MarshalIndent(prior, "", "  ")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path, Default(), discardLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.Get().RabbitMQ.Queue != "prior-queue" {
		t.Fatalf("expected persisted queue name to win, got %q", m.Get().RabbitMQ.Queue)
	}
}

func TestApplyRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "config.json"), Default(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	bad := Default()
	bad.RabbitMQ.Port = -1
	if err := m.Apply(bad); err == nil {
		t.Fatal("expected rejection")
	}
	if m.Get().RabbitMQ.Port == -1 {
		t.Fatal("rejected config must not replace the live snapshot")
	}
}

func TestApplyNotifiesSubscribersAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	m, err := NewManager(path, Default(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	var notified bool
	var gotQueue string
	m.Subscribe(func(old, next *ServerConfig) {
		notified = true
		gotQueue = next.RabbitMQ.Queue
	})

	next := Default()
	next.RabbitMQ.Queue = "new-queue"
	if err := m.Apply(next); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if !notified {
		t.Fatal("expected subscriber to be notified")
	}
	if gotQueue != "new-queue" {
		t.Fatalf("subscriber saw %q", gotQueue)
	}
	if m.Get().RabbitMQ.Queue != "new-queue" {
		t.Fatal("Get() did not reflect applied config")
	}

	data, _ := os.ReadFile(path)
	var onDisk ServerConfig
	_ = json.Unmarshal(data, &onDisk)
	if onDisk.RabbitMQ.Queue != "new-queue" {
		t.Fatal("persisted config.json did not reflect applied config")
	}
}

func TestApplyIsNoopWhenSemanticallyUnchanged(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "config.json"), Default(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	m.Subscribe(func(old, next *ServerConfig) { calls++ })

	same := Default()
	if err := m.Apply(same); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("expected no notification for an unchanged config, got %d", calls)
	}
}
