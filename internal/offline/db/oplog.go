package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mschirtzinger/offsync/internal/offline/schema"
)

const opColumns = `id, record_id, operation_type, timestamp, attempts, COALESCE(last_error, '')`

// AppendOperation adds an entry to the pending operation log and returns its
// id. It is the raw log primitive: it never coalesces. User mutations should
// go through CreateLocal, UpdateLocal or DeleteLocal instead.
func (db *DB) AppendOperation(ctx context.Context, recordID string, typ schema.OperationType) (int64, error) {
	return appendOperation(ctx, db.conn, recordID, typ)
}

func appendOperation(ctx context.Context, q querier, recordID string, typ schema.OperationType) (int64, error) {
	if recordID == "" {
		return 0, fmt.Errorf("record id is required")
	}
	if !typ.IsValid() {
		return 0, fmt.Errorf("invalid operation type %q", typ)
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO pending_operations (record_id, operation_type, timestamp) VALUES (?, ?, ?)`,
		recordID, string(typ), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append %s operation for %s: %w", typ, recordID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read operation id: %w", err)
	}
	return id, nil
}

// ListPending returns the whole log in insertion order.
func (db *DB) ListPending(ctx context.Context) ([]*schema.PendingOperation, error) {
	return listOperations(ctx, db.conn, `SELECT `+opColumns+` FROM pending_operations ORDER BY id ASC`)
}

// OperationsForRecord returns the pending entries for one record id in
// insertion order.
func (db *DB) OperationsForRecord(ctx context.Context, recordID string) ([]*schema.PendingOperation, error) {
	return operationsForRecord(ctx, db.conn, recordID)
}

func operationsForRecord(ctx context.Context, q querier, recordID string) ([]*schema.PendingOperation, error) {
	return listOperations(ctx, q,
		`SELECT `+opColumns+` FROM pending_operations WHERE record_id = ? ORDER BY id ASC`, recordID)
}

func listOperations(ctx context.Context, q querier, query string, args ...any) ([]*schema.PendingOperation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}
	defer rows.Close()

	var ops []*schema.PendingOperation
	for rows.Next() {
		var op schema.PendingOperation
		var typ, ts string
		if err := rows.Scan(&op.ID, &op.RecordID, &typ, &ts, &op.Attempts, &op.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan pending operation: %w", err)
		}
		if op.Type, err = schema.ParseOperationType(typ); err != nil {
			return nil, fmt.Errorf("pending operation %d: %w", op.ID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			op.Timestamp = t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending operations: %w", err)
	}
	return ops, nil
}

// RemoveOperation deletes one log entry.
// Returns nil if the entry doesn't exist (idempotent).
func (db *DB) RemoveOperation(ctx context.Context, id int64) error {
	return removeOperation(ctx, db.conn, id)
}

func removeOperation(ctx context.Context, q querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove operation %d: %w", id, err)
	}
	return nil
}

// PendingCount returns the number of queued operations.
func (db *DB) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_operations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending operations: %w", err)
	}
	return count, nil
}

// MarkAttemptFailed records a failed replay of an entry for diagnostics.
// The entry stays queued in its original position.
func (db *DB) MarkAttemptFailed(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := db.conn.ExecContext(ctx,
		`UPDATE pending_operations SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		msg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt for operation %d: %w", id, err)
	}
	return nil
}

// remapRecordID points every pending entry for from at to.
func remapRecordID(ctx context.Context, q querier, from, to string) (int64, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE pending_operations SET record_id = ? WHERE record_id = ?`, to, from)
	if err != nil {
		return 0, fmt.Errorf("failed to remap operations %s -> %s: %w", from, to, err)
	}
	return res.RowsAffected()
}
