// Package db provides the durable local state of the offline sync engine.
//
// A single embedded SQLite file (ncruces/go-sqlite3, WAL mode) holds two
// tables:
//
//   - records: one row per board-game record, keyed by id, carrying the
//     needs_sync flag and the advisory version counter
//   - pending_operations: the ordered log of CREATE/UPDATE/DELETE intents,
//     referencing records by id value (no foreign key)
//
// User mutations go through CreateLocal, UpdateLocal and DeleteLocal, which
// write the record and its log entry in one transaction. The reconciliation
// worker folds confirmed remote writes back with ResolveWrite.
//
// Writes to the same record id are serialized by an in-process keyed lock in
// addition to SQLite's own write lock, so the user path and the worker never
// interleave on one record while different records proceed independently.
//
// The handle is meant to be opened once per process and injected into every
// component that needs it:
//
//	store, err := db.Open(filepath.Join(home, "offsync.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	if err := store.InitSchema(); err != nil {
//	    return err
//	}
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrRecordNotFound is returned when a record id is not present locally.
var ErrRecordNotFound = errors.New("record not found")

// ErrRecordExists is returned by CreateLocal when the id is already taken.
var ErrRecordExists = errors.New("record already exists")

// DB wraps the SQLite connection pool together with the per-record locks.
type DB struct {
	conn  *sql.DB
	path  string
	locks *keyedMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open creates a new database connection at the specified path.
//
// Pragmas are passed through the DSN so that every pooled connection gets
// them, and transactions start IMMEDIATE so a read-then-write transaction
// never fails on lock upgrade.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_txlock=immediate"+
		"&_pragma=busy_timeout(5000)"+
		"&_pragma=journal_mode(wal)"+
		"&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		conn:  conn,
		path:  path,
		locks: newKeyedMutex(),
	}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL and closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// Backup writes a consistent copy of the database to dest using VACUUM INTO.
// dest must not exist.
func (db *DB) Backup(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup target %s already exists", dest)
	}
	if _, err := db.conn.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
