// Package sync replays the pending operation log against the remote service.
package sync

import (
	"context"
	"fmt"
	"time"
)

// Reconciler drains the pending operation log against the remote API.
//
// One Reconcile call is one reconciliation pass: it takes a snapshot of the
// log and replays every entry once, in insertion order, sequentially. The
// pass is resilient - a failed entry stays queued, is counted, and the pass
// moves on to the next one. Partial progress is kept.
//
// Entries appended while a pass is running are not part of its snapshot;
// the caller is expected to schedule another pass for them.
type Reconciler interface {
	// Reconcile performs one pass.
	//
	// Without a bearer credential the pass is skipped: no remote calls, no
	// notifications, and a Success outcome with Skipped set.
	//
	// The returned error is non-nil only when the log itself cannot be read;
	// per-entry failures are reported through Report.Failure and a Retry
	// outcome.
	//
	// Example:
	//   report, err := r.Reconcile(ctx)
	//   if err == nil && report.Outcome == sync.Retry {
	//       // schedule another pass with backoff
	//   }
	Reconcile(ctx context.Context) (*Report, error)

	// Refresh pulls every record from the remote service into the local
	// store, leaving records with unsynchronized changes or queued
	// operations untouched. Local records are never deleted.
	Refresh(ctx context.Context) (*RefreshReport, error)
}

// Outcome tells the scheduler whether another pass is needed.
type Outcome int

const (
	// Success means every replayed entry was applied or found moot.
	Success Outcome = iota
	// Retry means at least one entry failed and is still queued.
	Retry
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// Report summarizes one reconciliation pass.
type Report struct {
	Outcome Outcome

	// Pending is the size of the snapshot the pass worked on.
	Pending int
	// Success counts entries applied remotely.
	Success int
	// Failure counts entries that failed and remain queued.
	Failure int
	// Moot counts entries discarded without a remote call.
	Moot int
	// Requeued counts follow-up entries queued because a record changed
	// while its remote call was in flight.
	Requeued int

	// Skipped is set when no credential was available.
	Skipped bool
	// Interrupted is set when the context was cancelled mid-pass.
	Interrupted bool

	StartedAt time.Time
	Duration  time.Duration
}

// String renders a one-line summary.
func (r *Report) String() string {
	if r.Skipped {
		return "skipped (no credential)"
	}
	return fmt.Sprintf("%s: pending=%d success=%d failure=%d moot=%d requeued=%d in %s",
		r.Outcome, r.Pending, r.Success, r.Failure, r.Moot, r.Requeued, r.Duration.Round(time.Millisecond))
}

// RefreshReport summarizes one Refresh call.
type RefreshReport struct {
	Skipped bool
	Fetched int
	Merged  int
	// Kept counts remote records ignored because the local copy is dirty.
	Kept int
	// Failed counts remote records that could not be stored.
	Failed int
}
