package db

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one additive schema step. Steps only add tables and nullable
// or defaulted columns so existing rows and ids survive unchanged.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "records base table",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS records (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				nr_players INTEGER NOT NULL DEFAULT 0,
				date TEXT,
				family_friendly INTEGER NOT NULL DEFAULT 0
			)`,
		},
	},
	{
		version: 2,
		name:    "sync bookkeeping and pending operations",
		stmts: []string{
			`ALTER TABLE records ADD COLUMN needs_sync INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE records ADD COLUMN version INTEGER NOT NULL DEFAULT 1`,
			`CREATE TABLE IF NOT EXISTS pending_operations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				record_id TEXT NOT NULL,
				operation_type TEXT NOT NULL,
				timestamp TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_pending_record ON pending_operations(record_id)`,
			`CREATE INDEX IF NOT EXISTS idx_records_needs_sync ON records(needs_sync)`,
		},
	},
	{
		version: 3,
		name:    "record location",
		stmts: []string{
			`ALTER TABLE records ADD COLUMN latitude REAL`,
			`ALTER TABLE records ADD COLUMN longitude REAL`,
		},
	},
	{
		version: 4,
		name:    "operation attempt tracking",
		stmts: []string{
			`ALTER TABLE pending_operations ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE pending_operations ADD COLUMN last_error TEXT`,
		},
	},
}

// LatestVersion is the schema version InitSchema migrates to.
var LatestVersion = migrations[len(migrations)-1].version

// InitSchema brings the database schema up to LatestVersion.
//
// This is idempotent - safe to call on every start.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext brings the schema up to date with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	return db.migrateTo(ctx, LatestVersion)
}

// SchemaVersion returns the current PRAGMA user_version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, db.conn)
}

func schemaVersion(ctx context.Context, q querier) (int, error) {
	var v int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// migrateTo applies every pending migration up to and including target.
// Each step runs in its own transaction together with the version bump.
func (db *DB) migrateTo(ctx context.Context, target int) error {
	for _, m := range migrations {
		if m.version > target {
			break
		}
		err := db.withTx(ctx, func(tx *sql.Tx) error {
			current, err := schemaVersion(ctx, tx)
			if err != nil {
				return err
			}
			if current >= m.version {
				return nil
			}
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to apply migration %d (%s): %w", m.version, m.name, err)
				}
			}
			// PRAGMA does not accept bound parameters.
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
				return fmt.Errorf("failed to set schema version %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
