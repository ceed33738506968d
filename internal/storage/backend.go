package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/logging"
)

// Backend adapts the schema store to a platform's durability model.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Open initialises the engine and returns a live handle.
	Open(ctx context.Context) (*sql.DB, error)
	// Restore loads previously flushed data into db once the schema exists.
	Restore(ctx context.Context, db *sql.DB) error
	// Flush makes every write so far survive a restart.
	Flush(ctx context.Context, db *sql.DB) error
}

// FileBackend stores the database in a SQLite file. Every statement is
// durable on its own, so Flush does nothing.
type FileBackend struct {
	Path   string
	Driver string
}

// NewFileBackend returns a file backend for path using driver
// (DriverSQLite when empty).
func NewFileBackend(path, driver string) *FileBackend {
	if driver == "" {
		driver = DriverSQLite
	}
	return &FileBackend{Path: path, Driver: driver}
}

// Name implements Backend.
func (b *FileBackend) Name() string { return "file" }

// Open implements Backend.
func (b *FileBackend) Open(ctx context.Context) (*sql.DB, error) {
	if err := checkDriver(b.Driver); err != nil {
		return nil, err
	}

	dir := filepath.Dir(b.Path)
	if err := CheckDiskSpace(dir); err != nil {
		return nil, err
	}
	if msg := CheckDiskSpaceWarning(dir); msg != "" {
		logging.Component("storage").Warn(msg, "path", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(b.Driver, fileDSN(b.Driver, b.Path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY between our own connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// Restore implements Backend. File data is already in place.
func (b *FileBackend) Restore(context.Context, *sql.DB) error { return nil }

// Flush implements Backend.
func (b *FileBackend) Flush(context.Context, *sql.DB) error { return nil }

// BlobStore persists the exported database image.
type BlobStore interface {
	GetBytes(key string) ([]byte, error)
	SetBytes(key string, data []byte) error
}

// SnapshotKey is the BlobStore key holding the exported database.
const SnapshotKey = "sqlite:main"

// SnapshotBackend keeps the database in memory and persists a full export
// to a BlobStore on every Flush.
type SnapshotBackend struct {
	Blobs  BlobStore
	Driver string
	Key    string
}

// NewSnapshotBackend returns a memory-resident backend persisting into blobs.
func NewSnapshotBackend(blobs BlobStore, driver string) *SnapshotBackend {
	if driver == "" {
		driver = DriverSQLite
	}
	return &SnapshotBackend{Blobs: blobs, Driver: driver, Key: SnapshotKey}
}

// Name implements Backend.
func (b *SnapshotBackend) Name() string { return "snapshot" }

// Open implements Backend.
func (b *SnapshotBackend) Open(ctx context.Context) (*sql.DB, error) {
	if b.Blobs == nil {
		return nil, fmt.Errorf("snapshot backend has no blob store")
	}
	if err := checkDriver(b.Driver); err != nil {
		return nil, err
	}

	db, err := sql.Open(b.Driver, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Each connection to :memory: is a separate database; pin exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	return db, nil
}

// Restore implements Backend. It attaches the last exported image and
// copies every known table into the live database.
func (b *SnapshotBackend) Restore(ctx context.Context, db *sql.DB) error {
	data, err := b.Blobs.GetBytes(b.Key)
	if IsErrKeyNotFound(err) || (err == nil && len(data) == 0) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	dir, err := os.MkdirTemp("", "fintrack-restore-*")
	if err != nil {
		return fmt.Errorf("staging snapshot: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("staging snapshot: %w", err)
	}

	if _, err := db.ExecContext(ctx, "ATTACH DATABASE ? AS snap", path); err != nil {
		return fmt.Errorf("attaching snapshot: %w", err)
	}
	defer db.ExecContext(context.WithoutCancel(ctx), "DETACH DATABASE snap")

	for _, table := range tableNames {
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM snap.sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		if err != nil {
			return fmt.Errorf("inspecting snapshot: %w", err)
		}
		if n == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT OR REPLACE INTO main.%s SELECT * FROM snap.%s", table, table)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("restoring %s: %w", table, err)
		}
	}
	return nil
}

// Flush implements Backend. VACUUM INTO writes a consistent copy of the
// live database whose bytes replace the stored image.
func (b *SnapshotBackend) Flush(ctx context.Context, db *sql.DB) error {
	dir, err := os.MkdirTemp("", "fintrack-export-*")
	if err != nil {
		return fmt.Errorf("staging export: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "export.db")
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("exporting database: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	if err := b.Blobs.SetBytes(b.Key, data); err != nil {
		if isDiskFullError(err) {
			return errors.NewSystemErrorWithOp("flush", "disk full", errors.ErrStorageUnavailable)
		}
		return fmt.Errorf("persisting export: %w", err)
	}
	return nil
}
