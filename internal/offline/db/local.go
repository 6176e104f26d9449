package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mschirtzinger/offsync/internal/offline/schema"
)

// CreateLocal stores a new record and queues a CREATE for it in one
// transaction. A temporary id is assigned when rec.ID is empty. The stored
// copy, with version 1 and NeedsSync set, is returned.
func (db *DB) CreateLocal(ctx context.Context, rec *schema.Record) (*schema.Record, error) {
	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = schema.NewTempID()
	}
	stored.Version = 1
	stored.NeedsSync = true
	if err := stored.Validate(); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}

	unlock := db.locks.lock(stored.ID)
	defer unlock()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRecord(ctx, tx, stored.ID); err == nil {
			return fmt.Errorf("%w: %s", ErrRecordExists, stored.ID)
		} else if !errors.Is(err, ErrRecordNotFound) {
			return err
		}
		if err := upsertRecord(ctx, tx, stored); err != nil {
			return err
		}
		_, err := appendOperation(ctx, tx, stored.ID, schema.OpCreate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// UpdateLocal overwrites an existing record with new business fields, bumps
// its version and marks it dirty. An UPDATE is queued unless a CREATE or
// UPDATE for the record is already pending; that entry will replay the
// latest fields anyway.
func (db *DB) UpdateLocal(ctx context.Context, rec *schema.Record) (*schema.Record, error) {
	unlock := db.locks.lock(rec.ID)
	defer unlock()

	var stored *schema.Record
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getRecord(ctx, tx, rec.ID)
		if err != nil {
			return err
		}

		stored = rec.Clone()
		stored.Version = existing.Version + 1
		stored.NeedsSync = true
		if err := stored.Validate(); err != nil {
			return fmt.Errorf("invalid record: %w", err)
		}
		if err := upsertRecord(ctx, tx, stored); err != nil {
			return err
		}

		ops, err := operationsForRecord(ctx, tx, rec.ID)
		if err != nil {
			return err
		}
		if hasPendingWrite(ops) {
			return nil
		}
		_, err = appendOperation(ctx, tx, rec.ID, schema.OpUpdate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// DeleteLocal removes a record and queues its deletion.
//
// Pending entries are coalesced: when a CREATE is still pending the server
// has never seen the record, so every entry for it is dropped and nothing is
// queued. Otherwise pending UPDATEs are dropped and a DELETE is appended.
func (db *DB) DeleteLocal(ctx context.Context, id string) error {
	unlock := db.locks.lock(id)
	defer unlock()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getRecord(ctx, tx, id); err != nil {
			return err
		}
		if err := deleteRecord(ctx, tx, id); err != nil {
			return err
		}

		ops, err := operationsForRecord(ctx, tx, id)
		if err != nil {
			return err
		}

		neverSent := schema.IsTempID(id)
		deletePending := false
		for _, op := range ops {
			switch op.Type {
			case schema.OpCreate:
				neverSent = true
			case schema.OpDelete:
				deletePending = true
			}
		}

		for _, op := range ops {
			if neverSent || op.Type == schema.OpUpdate {
				if err := removeOperation(ctx, tx, op.ID); err != nil {
					return err
				}
			}
		}
		if neverSent || deletePending {
			return nil
		}
		_, err = appendOperation(ctx, tx, id, schema.OpDelete)
		return err
	})
}

// MergeRemote stores a record fetched from the server unless the local copy
// has unsynchronized changes or pending operations. It reports whether the
// record was written.
func (db *DB) MergeRemote(ctx context.Context, rec *schema.Record) (bool, error) {
	unlock := db.locks.lock(rec.ID)
	defer unlock()

	written := false
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		local, err := getRecord(ctx, tx, rec.ID)
		switch {
		case err == nil && local.NeedsSync:
			return nil
		case err != nil && !errors.Is(err, ErrRecordNotFound):
			return err
		}

		ops, err := operationsForRecord(ctx, tx, rec.ID)
		if err != nil {
			return err
		}
		if len(ops) > 0 {
			return nil
		}

		incoming := rec.Clone()
		incoming.NeedsSync = false
		if local != nil && local.Version > incoming.Version {
			incoming.Version = local.Version
		}
		if err := upsertRecord(ctx, tx, incoming); err != nil {
			return err
		}
		written = true
		return nil
	})
	return written, err
}

func hasPendingWrite(ops []*schema.PendingOperation) bool {
	for _, op := range ops {
		if op.Type == schema.OpCreate || op.Type == schema.OpUpdate {
			return true
		}
	}
	return false
}
