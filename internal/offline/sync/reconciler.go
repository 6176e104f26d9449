package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	gosync "sync"
	"time"

	"github.com/mschirtzinger/offsync/internal/offline/db"
	"github.com/mschirtzinger/offsync/internal/offline/remote"
	"github.com/mschirtzinger/offsync/internal/offline/schema"
)

// Store is the slice of the local database the reconciler needs.
// *db.DB implements it.
type Store interface {
	ListPending(ctx context.Context) ([]*schema.PendingOperation, error)
	OperationsForRecord(ctx context.Context, recordID string) ([]*schema.PendingOperation, error)
	GetRecord(ctx context.Context, id string) (*schema.Record, error)
	RemoveOperation(ctx context.Context, id int64) error
	MarkAttemptFailed(ctx context.Context, id int64, cause error) error
	ResolveWrite(ctx context.Context, res db.Resolution) (db.ResolveResult, error)
	MergeRemote(ctx context.Context, rec *schema.Record) (bool, error)
}

var _ Store = (*db.DB)(nil)

// Config holds reconciler dependencies.
type Config struct {
	// Notifier receives start/completion signals. Default: NopNotifier
	Notifier Notifier

	// Logger for per-entry messages. If nil, logs to stderr with [sync] prefix.
	Logger *log.Logger
}

type reconciler struct {
	store    Store
	api      remote.API
	creds    remote.CredentialSource
	notifier Notifier
	logger   *log.Logger

	// mu keeps passes in this process strictly sequential even when called
	// outside the orchestrator.
	mu gosync.Mutex
}

// New creates a Reconciler.
func New(store Store, api remote.API, creds remote.CredentialSource, config Config) Reconciler {
	if config.Notifier == nil {
		config.Notifier = NopNotifier{}
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &reconciler{
		store:    store,
		api:      api,
		creds:    creds,
		notifier: config.Notifier,
		logger:   config.Logger,
	}
}

func (r *reconciler) hasCredential() bool {
	return r.creds != nil && r.creds.Token() != ""
}

// Reconcile implements Reconciler.
func (r *reconciler) Reconcile(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &Report{StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	if !r.hasCredential() {
		r.logger.Printf("No credential available, skipping sync")
		report.Skipped = true
		return report, nil
	}

	ops, err := r.store.ListPending(ctx)
	if err != nil {
		report.Outcome = Retry
		return report, fmt.Errorf("failed to read pending operations: %w", err)
	}
	report.Pending = len(ops)
	if len(ops) == 0 {
		return report, nil
	}

	r.logger.Printf("Starting sync of %d pending operation(s)", len(ops))
	r.notifier.SyncStarted(len(ops))

	// Temporary ids replaced during this pass. The log rows are remapped in
	// the database, but the snapshot still carries the old ids.
	remapped := make(map[string]string)

	for _, op := range ops {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		recordID := op.RecordID
		if canonical, ok := remapped[recordID]; ok {
			recordID = canonical
		}

		res, err := r.replay(ctx, op, recordID, remapped)
		switch {
		case err != nil:
			report.Failure++
			r.logger.Printf("WARNING: Failed to sync %s: %v", op, err)
			if markErr := r.store.MarkAttemptFailed(ctx, op.ID, err); markErr != nil {
				r.logger.Printf("WARNING: %v", markErr)
			}
		case res.moot:
			report.Moot++
		default:
			report.Success++
			if res.requeued {
				report.Requeued++
			}
		}
	}

	if report.Failure > 0 || report.Interrupted {
		report.Outcome = Retry
	}

	r.notifier.SyncDismissed()
	r.notifier.SyncCompleted(report.Success, report.Failure)
	r.logger.Printf("Sync complete: success=%d, failure=%d, moot=%d", report.Success, report.Failure, report.Moot)

	return report, nil
}

type replayResult struct {
	moot     bool
	requeued bool
}

func (r *reconciler) replay(ctx context.Context, op *schema.PendingOperation, recordID string, remapped map[string]string) (replayResult, error) {
	switch op.Type {
	case schema.OpCreate:
		rec, found, err := r.load(ctx, recordID)
		if err != nil || !found {
			return r.discardIfMissing(ctx, op, found, err)
		}
		return r.pushCreate(ctx, op, rec, remapped)

	case schema.OpUpdate:
		rec, found, err := r.load(ctx, recordID)
		if err != nil || !found {
			return r.discardIfMissing(ctx, op, found, err)
		}
		if rec.IsTemp() {
			return r.pushTemporaryUpdate(ctx, op, rec, remapped)
		}
		return r.pushUpdate(ctx, op, rec)

	case schema.OpDelete:
		return r.pushDelete(ctx, op, recordID)
	}
	return replayResult{}, fmt.Errorf("unknown operation type %q", op.Type)
}

func (r *reconciler) load(ctx context.Context, id string) (*schema.Record, bool, error) {
	rec, err := r.store.GetRecord(ctx, id)
	if errors.Is(err, db.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// discardIfMissing removes an entry whose record no longer exists locally.
func (r *reconciler) discardIfMissing(ctx context.Context, op *schema.PendingOperation, found bool, loadErr error) (replayResult, error) {
	if loadErr != nil {
		return replayResult{}, loadErr
	}
	if found {
		return replayResult{}, nil
	}
	if err := r.store.RemoveOperation(ctx, op.ID); err != nil {
		return replayResult{}, err
	}
	r.logger.Printf("Discarded %s: record no longer exists", op)
	return replayResult{moot: true}, nil
}

func (r *reconciler) pushCreate(ctx context.Context, op *schema.PendingOperation, rec *schema.Record, remapped map[string]string) (replayResult, error) {
	created, err := r.api.Create(ctx, rec)
	if err != nil {
		return replayResult{}, err
	}

	res, err := r.store.ResolveWrite(ctx, db.Resolution{
		OpID:        op.ID,
		LocalID:     rec.ID,
		SentVersion: rec.Version,
		Remote:      created,
	})
	if err != nil {
		return replayResult{}, fmt.Errorf("created remotely as %s but failed to store: %w", created.ID, err)
	}
	if res.CanonicalID != rec.ID {
		remapped[rec.ID] = res.CanonicalID
		r.logger.Printf("Created %s on server as %s", rec.ID, res.CanonicalID)
	} else {
		r.logger.Printf("Created %s on server", rec.ID)
	}
	return replayResult{requeued: res.Requeued}, nil
}

// pushTemporaryUpdate handles an UPDATE for a record the server has not
// seen yet. While a CREATE for it is still queued the UPDATE must wait;
// without one, the record is created instead.
func (r *reconciler) pushTemporaryUpdate(ctx context.Context, op *schema.PendingOperation, rec *schema.Record, remapped map[string]string) (replayResult, error) {
	ops, err := r.store.OperationsForRecord(ctx, rec.ID)
	if err != nil {
		return replayResult{}, err
	}
	for _, other := range ops {
		if other.Type == schema.OpCreate && other.ID != op.ID {
			return replayResult{}, fmt.Errorf("record %s not yet created remotely", rec.ID)
		}
	}
	return r.pushCreate(ctx, op, rec, remapped)
}

func (r *reconciler) pushUpdate(ctx context.Context, op *schema.PendingOperation, rec *schema.Record) (replayResult, error) {
	updated, err := r.api.Update(ctx, rec.ID, rec)
	if err != nil {
		return replayResult{}, err
	}
	updated.ID = rec.ID

	res, err := r.store.ResolveWrite(ctx, db.Resolution{
		OpID:        op.ID,
		LocalID:     rec.ID,
		SentVersion: rec.Version,
		Remote:      updated,
	})
	if err != nil {
		return replayResult{}, fmt.Errorf("updated remotely but failed to store: %w", err)
	}
	r.logger.Printf("Updated %s on server", rec.ID)
	return replayResult{requeued: res.Requeued}, nil
}

func (r *reconciler) pushDelete(ctx context.Context, op *schema.PendingOperation, recordID string) (replayResult, error) {
	if schema.IsTempID(recordID) {
		if err := r.store.RemoveOperation(ctx, op.ID); err != nil {
			return replayResult{}, err
		}
		r.logger.Printf("Discarded %s: record never reached the server", op)
		return replayResult{moot: true}, nil
	}

	err := r.api.Delete(ctx, recordID)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		return replayResult{}, err
	}
	if err := r.store.RemoveOperation(ctx, op.ID); err != nil {
		return replayResult{}, err
	}
	r.logger.Printf("Deleted %s on server", recordID)
	return replayResult{}, nil
}

// Refresh implements Reconciler.
func (r *reconciler) Refresh(ctx context.Context) (*RefreshReport, error) {
	report := &RefreshReport{}
	if !r.hasCredential() {
		report.Skipped = true
		return report, nil
	}

	records, err := r.api.Find(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to fetch remote records: %w", err)
	}
	report.Fetched = len(records)

	for _, rec := range records {
		written, err := r.store.MergeRemote(ctx, rec)
		switch {
		case err != nil:
			report.Failed++
			r.logger.Printf("WARNING: Failed to store remote record %s: %v", rec.ID, err)
		case written:
			report.Merged++
		default:
			report.Kept++
		}
	}

	r.logger.Printf("Refresh complete: fetched=%d, merged=%d, kept=%d", report.Fetched, report.Merged, report.Kept)
	return report, nil
}
