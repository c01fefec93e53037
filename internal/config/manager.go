package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Subscriber is notified synchronously, under the apply mutex, whenever a
// new config is accepted. Per spec.md §9, reactions must be short and
// non-blocking — long-running work (Consumer teardown/restart) should set
// a flag and return immediately rather than block here.
type Subscriber func(old, new *ServerConfig)

// Manager is the process-wide Config Manager singleton described in
// spec.md §4.6. Reads are lock-free (atomic pointer load); Apply
// serializes through applyMu so two concurrent updates never interleave.
type Manager struct {
	snapshot atomic.Pointer[ServerConfig]
	path     string
	log      zerolog.Logger

	applyMu     sync.Mutex
	subscribers []Subscriber
}

// NewManager constructs a Manager persisting to snapshotPath. On
// construction it prefers the persisted file; if absent or invalid, it
// falls back to initial (the environment-derived config) and persists it.
func NewManager(snapshotPath string, initial *ServerConfig, log zerolog.Logger) (*Manager, error) {
	m := &Manager{path: snapshotPath, log: log}

	if loaded, err := loadSnapshot(snapshotPath); err == nil {
		if verr := Validate(loaded); verr == nil {
			m.snapshot.Store(loaded)
			return m, nil
		}
		log.Warn().Str("path", snapshotPath).Msg("persisted config.json failed validation, falling back to initial config")
	}

	if err := Validate(initial); err != nil {
		return nil, err
	}
	m.snapshot.Store(initial)
	if err := m.persist(initial); err != nil {
		return nil, fmt.Errorf("persist initial config: %w", err)
	}
	return m, nil
}

func loadSnapshot(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ServerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the currently active configuration. Safe for concurrent use;
// never blocks on Apply.
func (m *Manager) Get() *ServerConfig {
	return m.snapshot.Load()
}

// Subscribe registers a callback invoked after every accepted Apply. It
// takes the apply mutex, so it may run concurrently with Apply; a
// Subscriber must not call Subscribe itself, since Apply holds that mutex
// while notifying.
func (m *Manager) Subscribe(fn Subscriber) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Apply validates a new document as a whole; if valid and semantically
// different from the current snapshot, it replaces the snapshot,
// persists it, and synchronously fans out to subscribers. Never applies a
// config partially.
func (m *Manager) Apply(next *ServerConfig) error {
	if err := Validate(next); err != nil {
		return err
	}

	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	current := m.snapshot.Load()
	if reflect.DeepEqual(current, next) {
		return nil
	}

	if err := m.persist(next); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	m.snapshot.Store(next)

	for _, sub := range m.subscribers {
		sub(current, next)
	}
	return nil
}

// persist writes the snapshot to disk UTF-8, two-space indent, via a
// temp-file-then-rename so a crash mid-write yields either the old or the
// new document, never a half-written one.
func (m *Manager) persist(cfg *ServerConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, m.path)
}
