// Package daemon schedules reconciliation passes and runs the long-lived
// pieces of the offline engine together.
//
// # Orchestrator
//
// The Orchestrator is a small state machine:
//
//	Idle --trigger--> Triggered --pass starts--> Running --pass ends--> Idle
//
// Triggers come from connectivity returning (offline to online only), from
// a credential becoming available, from the periodic ticker, from the retry
// timer, and from explicit callers via Trigger. At most one pass runs at a
// time. A trigger received while a pass is running is folded into a single
// follow-up pass; further triggers before that pass starts are dropped and
// counted in Stats.PassesCoalesced. A running pass is never interrupted by a
// trigger, only by cancellation of the Run context.
//
// When a pass reports Retry, the orchestrator re-triggers itself after an
// exponential backoff (RetryBase doubled per consecutive failure, capped at
// RetryMax). A successful or skipped pass resets the backoff.
//
// # Daemon
//
// Daemon runs the orchestrator, the connectivity monitor, the token file
// watcher and the optional dashboard under one errgroup so that any of them
// failing, or the context being cancelled, stops them all.
package daemon
