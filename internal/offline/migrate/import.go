package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mschirtzinger/offsync/internal/offline/db"
	"github.com/mschirtzinger/offsync/internal/offline/schema"
)

// Store is the subset of *db.DB used for import and export.
type Store interface {
	CreateLocal(ctx context.Context, rec *schema.Record) (*schema.Record, error)
	MergeRemote(ctx context.Context, rec *schema.Record) (bool, error)
	ListRecords(ctx context.Context) ([]*schema.Record, error)
	Backup(ctx context.Context, dest string) error
	Path() string
}

// ImportOptions contains configuration for an import.
type ImportOptions struct {
	From    string // Input JSONL file path
	DryRun  bool   // Validate without writing
	Backup  bool   // Snapshot the database before writing
	AsLocal bool   // Queue every record as a local CREATE
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	Imported      int
	Skipped       int
	BackupCreated string
	Errors        []string
}

// Import loads a JSONL file into the store.
//
// By default records are treated as server copies: each needs an id and is
// merged with MergeRemote, so records with local changes are skipped.
// With AsLocal every record is created through CreateLocal and therefore
// pushed on the next sync; server ids are dropped so the server assigns
// fresh ones, while temporary ids are kept and skipped if already present.
func Import(ctx context.Context, store Store, opts ImportOptions) (*ImportResult, error) {
	if _, err := os.Stat(opts.From); err != nil {
		return nil, fmt.Errorf("input file does not exist: %w", err)
	}

	records, err := ReadJSONL(opts.From)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSONL: %w", err)
	}

	result := &ImportResult{}

	if opts.Backup && !opts.DryRun {
		backupPath := store.Path() + ".backup." + time.Now().Format("20060102-150405")
		if err := store.Backup(ctx, backupPath); err != nil {
			return nil, err
		}
		result.BackupCreated = backupPath
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if opts.AsLocal && !rec.IsTemp() {
			rec.ID = ""
		}
		if !opts.AsLocal && rec.ID == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d (%s): missing _id", i+1, rec.Name))
			continue
		}

		check := rec.Clone()
		if check.ID == "" {
			check.ID = schema.NewTempID()
		}
		if err := check.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d (%s): %v", i+1, rec.Name, err))
			continue
		}

		if opts.DryRun {
			result.Imported++
			continue
		}

		if opts.AsLocal {
			if _, err := store.CreateLocal(ctx, rec); err != nil {
				if errors.Is(err, db.ErrRecordExists) {
					result.Skipped++
					continue
				}
				result.Errors = append(result.Errors, fmt.Sprintf("record %d (%s): %v", i+1, rec.Name, err))
				continue
			}
			result.Imported++
			continue
		}

		written, err := store.MergeRemote(ctx, rec)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
			continue
		}
		if written {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	return result, nil
}

// Export writes every local record to path and returns how many were written.
func Export(ctx context.Context, store Store, path string) (int, error) {
	records, err := store.ListRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list records: %w", err)
	}
	if err := WriteJSONL(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
