package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mschirtzinger/offsync/internal/offline/schema"
)

// Resolution describes a remote CREATE or UPDATE the server has confirmed.
type Resolution struct {
	// OpID is the log entry that was replayed.
	OpID int64
	// LocalID is the record id the entry referenced (possibly temporary).
	LocalID string
	// SentVersion is the local version whose fields were sent.
	SentVersion int
	// Remote is the record returned by the server.
	Remote *schema.Record
}

// ResolveResult reports what ResolveWrite did.
type ResolveResult struct {
	// CanonicalID is the id the record is stored under afterwards.
	CanonicalID string
	// Remapped is the number of later log entries rewritten from the
	// temporary id to the canonical one.
	Remapped int64
	// Requeued is set when a follow-up operation was queued because the
	// record changed locally while the remote call was in flight.
	Requeued bool
}

// ResolveWrite folds a confirmed remote write back into the store in one
// transaction:
//
//   - the replayed entry is removed
//   - a temporary row is replaced by the canonical one, and later entries
//     referencing the temporary id are rewritten to the canonical id
//   - if the local version still equals SentVersion, the server's copy is
//     stored; otherwise the local fields are kept, the record stays dirty and
//     an UPDATE is left queued so the newer edit reaches the server
//   - if the record was deleted locally while a CREATE was in flight, a
//     DELETE for the canonical id is queued
func (db *DB) ResolveWrite(ctx context.Context, res Resolution) (ResolveResult, error) {
	canonical := res.LocalID
	if res.Remote != nil && res.Remote.ID != "" {
		canonical = res.Remote.ID
	}
	result := ResolveResult{CanonicalID: canonical}

	unlock := db.locks.lock(res.LocalID, canonical)
	defer unlock()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := removeOperation(ctx, tx, res.OpID); err != nil {
			return err
		}

		local, err := getRecord(ctx, tx, res.LocalID)
		if errors.Is(err, ErrRecordNotFound) {
			if canonical != res.LocalID {
				if _, err := appendOperation(ctx, tx, canonical, schema.OpDelete); err != nil {
					return err
				}
				result.Requeued = true
			}
			return nil
		}
		if err != nil {
			return err
		}

		if canonical != res.LocalID {
			if err := deleteRecord(ctx, tx, res.LocalID); err != nil {
				return err
			}
			n, err := remapRecordID(ctx, tx, res.LocalID, canonical)
			if err != nil {
				return err
			}
			result.Remapped = n
		}

		edited := local.Version != res.SentVersion
		var stored *schema.Record
		if edited || res.Remote == nil {
			stored = local.Clone()
		} else {
			stored = res.Remote.Clone()
			if stored.Version < local.Version {
				stored.Version = local.Version
			}
		}
		stored.ID = canonical

		ops, err := operationsForRecord(ctx, tx, canonical)
		if err != nil {
			return err
		}
		if edited && !hasPendingWrite(ops) {
			if _, err := appendOperation(ctx, tx, canonical, schema.OpUpdate); err != nil {
				return err
			}
			result.Requeued = true
			stored.NeedsSync = true
		} else {
			stored.NeedsSync = len(ops) > 0
		}

		if err := upsertRecord(ctx, tx, stored); err != nil {
			return fmt.Errorf("failed to store resolved record: %w", err)
		}
		return nil
	})
	if err != nil {
		return ResolveResult{}, err
	}
	return result, nil
}
