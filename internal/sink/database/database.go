// Package database implements the Database Sink: it persists records to
// TimescaleDB/PostgreSQL, one table per project, created lazily on first
// use, with a periodic connection health check per spec.md §4.3.
package database

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/acaciaworks/logship/internal/config"
	"github.com/acaciaworks/logship/internal/record"
)

// tableNamePattern mirrors record's project validation: only characters
// that are safe to fold into an identifier ever reach here, but we
// re-derive a strict identifier regardless of what Validate allowed.
var tableNamePattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// dbExecer is the minimal *pgxpool.Pool surface the DDL/insert logic
// needs. Grounded on the same interface-substitution idiom used for
// broker's amqpChannel: tests inject a fake executer and assert on the
// exact SQL issued, instead of requiring a live Postgres to exercise
// schema creation and insert statements.
type dbExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Sink owns one pgxpool.Pool and memoizes which per-project tables have
// already been created, per spec.md §4.3 ("idempotent schema creation,
// memoized so it issues CREATE TABLE IF NOT EXISTS at most once per
// project per process lifetime").
type Sink struct {
	pool dbExecer
	// closer is the concrete pool handle, kept separately from pool
	// (dbExecer) so tests can inject a fake executer without also
	// faking pgxpool.Pool's Ping/Close.
	closer *pgxpool.Pool
	log    zerolog.Logger

	mu     sync.Mutex
	tables map[string]bool

	stopHealth chan struct{}
	healthDone chan struct{}
}

// New dials TimescaleDB/PostgreSQL and starts the periodic health-check
// goroutine described in spec.md §4.3. The sink owns the pool and must
// be closed with Close.
func New(ctx context.Context, cfg config.TimescaleDBConfig, log zerolog.Logger) (*Sink, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("database sink: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database sink: ping: %w", err)
	}

	s := &Sink{
		pool:       pool,
		closer:     pool,
		log:        log,
		tables:     make(map[string]bool),
		stopHealth: make(chan struct{}),
		healthDone: make(chan struct{}),
	}

	interval := cfg.HealthCheckEvery
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	go s.healthLoop(interval)

	return s, nil
}

func (s *Sink) healthLoop(interval time.Duration) {
	defer close(s.healthDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopHealth:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := s.closer.Ping(ctx)
			cancel()
			if err != nil {
				s.log.Warn().Err(err).Msg("database sink: health check ping failed")
			}
		}
	}
}

// Write inserts one record into the per-project table, creating the
// table first if this is the first record seen for that project since
// process start. Per spec.md §4.3, insert failures are logged and
// swallowed — there are no cross-record transactions.
func (s *Sink) Write(ctx context.Context, r *record.Record) {
	table, err := s.ensureTable(ctx, r.Project)
	if err != nil {
		s.log.Error().Err(err).Str("project", r.Project).Msg("database sink: ensure table failed, dropping record")
		return
	}

	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (level, timestamp, module, function, message, code) VALUES ($1, $2, $3, $4, $5, $6)`, table),
		string(r.Level), r.Timestamp, r.Module, r.Function, r.Message, r.Code,
	)
	if err != nil {
		s.log.Error().Err(err).Str("project", r.Project).Msg("database sink: insert failed, dropping record")
	}
}

func (s *Sink) ensureTable(ctx context.Context, project string) (string, error) {
	table := TableName(project)

	s.mu.Lock()
	if s.tables[table] {
		s.mu.Unlock()
		return table, nil
	}
	s.mu.Unlock()

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	level VARCHAR(7) NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	module VARCHAR(50),
	function VARCHAR(50),
	message TEXT NOT NULL,
	code INTEGER NOT NULL DEFAULT 0
)`, table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return "", fmt.Errorf("create table %s: %w", table, err)
	}

	idxLevelTimestamp := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_level_timestamp_idx ON %s (level, timestamp)`, table, table)
	if _, err := s.pool.Exec(ctx, idxLevelTimestamp); err != nil {
		return "", fmt.Errorf("create level/timestamp index on %s: %w", table, err)
	}
	idxModuleFunction := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_module_function_idx ON %s (module, function)`, table, table)
	if _, err := s.pool.Exec(ctx, idxModuleFunction); err != nil {
		return "", fmt.Errorf("create module/function index on %s: %w", table, err)
	}

	s.mu.Lock()
	s.tables[table] = true
	s.mu.Unlock()
	return table, nil
}

// TableName derives a safe Postgres identifier from a project name,
// lower-cased with every non-alphanumeric run collapsed to an
// underscore and prefixed so a numeric-leading project name still
// yields a legal identifier.
func TableName(project string) string {
	sanitized := tableNamePattern.ReplaceAllString(project, "_")
	return "log_" + toLower(sanitized)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Close stops the health-check loop and closes the pool, waiting for
// the loop to observe the stop signal.
func (s *Sink) Close() {
	close(s.stopHealth)
	<-s.healthDone
	if s.closer != nil {
		s.closer.Close()
	}
}
