package database

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/acaciaworks/logship/internal/record"
)

func discardLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestTableNameSanitizesProject(t *testing.T) {
	cases := map[string]string{
		"billing":      "log_billing",
		"Billing-App":  "log_billing_app",
		"my project 1": "log_my_project_1",
		"a--b__c":      "log_a_b_c",
		"123project":   "log_123project",
	}
	for in, want := range cases {
		if got := TableName(in); got != want {
			t.Errorf("TableName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTableNameIsStableAcrossCalls(t *testing.T) {
	if TableName("billing") != TableName("billing") {
		t.Fatal("expected TableName to be deterministic")
	}
}

// fakeExecer is a minimal dbExecer fake, grounded on the same
// interface-substitution pattern used for broker's amqpChannel: it
// records every statement issued so tests can assert on the exact DDL
// and insert SQL without a live Postgres.
type fakeExecer struct {
	mu    sync.Mutex
	stmts []string
	err   error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	f.stmts = append(f.stmts, sql)
	f.mu.Unlock()
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.CommandTag{}, nil
}

func newTestSink(exec dbExecer) *Sink {
	return &Sink{
		pool:   exec,
		log:    discardLogger(),
		tables: make(map[string]bool),
	}
}

func TestEnsureTableIssuesPinnedSchema(t *testing.T) {
	exec := &fakeExecer{}
	s := newTestSink(exec)

	table, err := s.ensureTable(context.Background(), "billing-api")
	if err != nil {
		t.Fatalf("ensureTable: %v", err)
	}
	if table != "log_billing_api" {
		t.Fatalf("table = %q", table)
	}

	if len(exec.stmts) != 3 {
		t.Fatalf("issued %d statements, want 3 (create table + 2 indexes): %v", len(exec.stmts), exec.stmts)
	}
	if got := exec.stmts[0]; !strings.Contains(got, "CREATE TABLE IF NOT EXISTS log_billing_api") {
		t.Errorf("statement 0 = %q, missing CREATE TABLE", got)
	}
	if got := exec.stmts[1]; !strings.Contains(got, "level_timestamp_idx") || !strings.Contains(got, "(level, timestamp)") {
		t.Errorf("statement 1 = %q, want the (level, timestamp) composite index", got)
	}
	if got := exec.stmts[2]; !strings.Contains(got, "module_function_idx") || !strings.Contains(got, "(module, function)") {
		t.Errorf("statement 2 = %q, want the (module, function) composite index", got)
	}
}

func TestEnsureTableIsMemoizedAfterFirstSuccess(t *testing.T) {
	exec := &fakeExecer{}
	s := newTestSink(exec)

	if _, err := s.ensureTable(context.Background(), "billing"); err != nil {
		t.Fatalf("first ensureTable: %v", err)
	}
	if _, err := s.ensureTable(context.Background(), "billing"); err != nil {
		t.Fatalf("second ensureTable: %v", err)
	}

	if len(exec.stmts) != 3 {
		t.Fatalf("issued %d statements across two calls, want 3 (memoized after first)", len(exec.stmts))
	}
}

func TestWriteInsertsIntoProjectTable(t *testing.T) {
	exec := &fakeExecer{}
	s := newTestSink(exec)

	r := &record.Record{
		Project:   "billing-api",
		Timestamp: time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
		Level:     record.LevelInfo,
		Module:    "checkout",
		Function:  "chargeCard",
		Message:   "charge accepted",
		Code:      200,
	}
	s.Write(context.Background(), r)

	if len(exec.stmts) != 4 {
		t.Fatalf("issued %d statements, want 4 (create table + 2 indexes + insert): %v", len(exec.stmts), exec.stmts)
	}
	last := exec.stmts[len(exec.stmts)-1]
	if !strings.Contains(last, "INSERT INTO log_billing_api") {
		t.Errorf("last statement = %q, want an INSERT into the project table", last)
	}
}

func TestWriteDropsRecordWhenEnsureTableFails(t *testing.T) {
	exec := &fakeExecer{err: context.DeadlineExceeded}
	s := newTestSink(exec)

	r := &record.Record{Project: "billing-api", Level: record.LevelInfo}
	s.Write(context.Background(), r) // must not panic
}
