// Package storage provides the database layer for FinTrack: the relational
// schema store over database/sql and the flat key-value store holding
// pre-relational legacy data.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/logging"
)

// tableNames lists every table in restore order.
var tableNames = []string{"transactions", "notes", "settings", "notifications", "reminder_schedule"}

const schema = `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		description TEXT,
		amount REAL,
		type TEXT,
		category TEXT,
		date TEXT
	);

	CREATE TABLE IF NOT EXISTS notes (
		month_year TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		time TEXT,
		message TEXT,
		enabled INTEGER,
		recurrence TEXT
	);

	CREATE TABLE IF NOT EXISTS reminder_schedule (
		id TEXT PRIMARY KEY,
		next_fire_at TEXT
	);
`

// Store is the schema store. It owns one database handle, opened lazily and
// reused until Close.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

// New creates a store over backend. Nothing is opened until first use.
func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		logger:  logging.Component("storage").With("backend", backend.Name()),
	}
}

// Open initialises the database, creates the schema, restores any
// persisted snapshot and flushes once. It is idempotent; a failed open
// is retried on the next call.
func (s *Store) Open(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	start := time.Now()
	db, err := s.backend.Open(ctx)
	if err != nil {
		return nil, unavailable("open", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, unavailable("create schema", err)
	}

	if err := s.backend.Restore(ctx, db); err != nil {
		db.Close()
		return nil, unavailable("restore", err)
	}

	if err := s.backend.Flush(ctx, db); err != nil {
		db.Close()
		return nil, unavailable("flush", err)
	}

	s.db = db
	logging.LogOperation("storage.open", start, "backend", s.backend.Name())
	s.logger.Info("schema store initialized")
	return db, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, errors.ErrStorageUnavailable) {
		return err
	}
	return errors.NewSystemErrorWithOp(op, err.Error(), errors.ErrStorageUnavailable)
}

// Close flushes and releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	flushErr := s.backend.Flush(context.Background(), s.db)
	closeErr := s.db.Close()
	s.db = nil
	return errors.Join(flushErr, closeErr)
}

// Flush asks the backend to make all writes so far durable.
func (s *Store) Flush(ctx context.Context) error {
	db, err := s.Open(ctx)
	if err != nil {
		return err
	}
	return s.backend.Flush(ctx, db)
}

type batchKey struct{}

func inBatch(ctx context.Context) bool {
	v, _ := ctx.Value(batchKey{}).(bool)
	return v
}

// Batch runs fn with per-write flushing suppressed and flushes once at the
// end, whether or not fn succeeded. Nested batches join the outer one.
func (s *Store) Batch(ctx context.Context, fn func(ctx context.Context) error) error {
	if inBatch(ctx) {
		return fn(ctx)
	}
	fnErr := fn(context.WithValue(ctx, batchKey{}, true))
	if err := s.Flush(ctx); err != nil {
		return errors.Join(fnErr, errors.NewWriteError("flush", "database", "", err))
	}
	return fnErr
}

// write executes one mutating statement and flushes unless inside a batch.
func (s *Store) write(ctx context.Context, op, entity, id, query string, args ...any) error {
	db, err := s.Open(ctx)
	if err != nil {
		return errors.NewWriteError(op, entity, id, err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		if isDiskFullError(err) {
			err = errors.Join(err, errors.ErrStorageUnavailable)
		}
		s.logger.Error("write failed", logging.KeyOperation, op, "entity", entity, "id", id, logging.KeyError, err)
		return errors.NewWriteError(op, entity, id, err)
	}

	if inBatch(ctx) {
		return nil
	}
	if err := s.backend.Flush(ctx, db); err != nil {
		s.logger.Error("flush failed", logging.KeyOperation, op, "entity", entity, "id", id, logging.KeyError, err)
		return errors.NewWriteError(op, entity, id, fmt.Errorf("flush: %w", err))
	}
	return nil
}

// readFailure logs a recovered read error.
func (s *Store) readFailure(op string, err error) {
	s.logger.Warn("read failed, using default",
		logging.KeyOperation, op,
		logging.KeyError, errors.Join(errors.ErrReadFailure, err))
}

// count runs a strict COUNT(*) query.
func (s *Store) count(ctx context.Context, table string) (int, error) {
	db, err := s.Open(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}
