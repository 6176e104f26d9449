package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	offsync "github.com/mschirtzinger/offsync/internal/offline/sync"
)

// State is the orchestrator's scheduling state.
type State int

const (
	// Idle means no pass is running or queued.
	Idle State = iota
	// Triggered means a pass is queued and will start shortly.
	Triggered
	// Running means a pass is in progress.
	Running
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Triggered:
		return "triggered"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Config holds configuration for the orchestrator.
type Config struct {
	// PeriodicInterval triggers a pass on a fixed schedule. Zero disables it.
	PeriodicInterval time.Duration

	// SyncOnStart queues a pass as soon as Run starts.
	SyncOnStart bool

	// RetryBase is the delay before the first retry after a failed pass.
	RetryBase time.Duration

	// RetryMax caps the retry delay.
	RetryMax time.Duration

	// OnPass, if set, is called after every pass.
	OnPass func(report *offsync.Report, err error)

	// Logger for orchestrator activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PeriodicInterval: 15 * time.Minute,
		SyncOnStart:      true,
		RetryBase:        5 * time.Second,
		RetryMax:         5 * time.Minute,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Stats is a snapshot of orchestrator counters.
type Stats struct {
	State           State
	Triggers        int64
	PassesRun       int64
	PassesCoalesced int64
	LastReason      string
	LastReport      *offsync.Report
	LastError       string
	ConsecutiveFail int
	NextRetryAt     time.Time
}

// Orchestrator schedules reconciliation passes.
type Orchestrator struct {
	rec    offsync.Reconciler
	config *Config

	// trigger holds at most one queued pass.
	trigger chan string

	mu    sync.Mutex
	state State
	stats Stats

	// Connectivity and credential edge detection.
	wasOffline bool
	hadToken   bool
}

// NewOrchestrator creates an orchestrator around rec.
func NewOrchestrator(rec offsync.Reconciler, config *Config) (*Orchestrator, error) {
	if rec == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.RetryBase <= 0 {
		config.RetryBase = 5 * time.Second
	}
	if config.RetryMax < config.RetryBase {
		config.RetryMax = config.RetryBase
	}
	return &Orchestrator{
		rec:     rec,
		config:  config,
		trigger: make(chan string, 1),
	}, nil
}

// State returns the current scheduling state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Stats returns a snapshot of the counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.stats
	s.State = o.state
	return s
}

// Trigger queues a pass. It returns false when a pass is already queued and
// this trigger was folded into it.
func (o *Orchestrator) Trigger(reason string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stats.Triggers++
	select {
	case o.trigger <- reason:
		if o.state == Idle {
			o.state = Triggered
		}
		return true
	default:
		o.stats.PassesCoalesced++
		return false
	}
}

// NotifyConnectivity feeds one connectivity state. Only a transition from
// offline to online triggers a pass; the first state seen never does.
func (o *Orchestrator) NotifyConnectivity(online bool) {
	o.mu.Lock()
	restored := online && o.wasOffline
	o.wasOffline = !online
	o.mu.Unlock()

	if restored {
		o.config.Logger.Printf("Connectivity restored, triggering sync")
		o.Trigger("connectivity restored")
	}
}

// NotifyCredential feeds the current token. A pass is triggered when a token
// becomes available after none was.
func (o *Orchestrator) NotifyCredential(token string) {
	o.mu.Lock()
	gained := token != "" && !o.hadToken
	o.hadToken = token != ""
	o.mu.Unlock()

	if gained {
		o.config.Logger.Printf("Credential available, triggering sync")
		o.Trigger("credential available")
	}
}

// SetCredentialPresent seeds the credential edge detector without
// triggering.
func (o *Orchestrator) SetCredentialPresent(present bool) {
	o.mu.Lock()
	o.hadToken = present
	o.mu.Unlock()
}

// Run executes queued passes until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.config.Logger.Println("Starting orchestrator")

	if o.config.SyncOnStart {
		o.Trigger("startup")
	}

	var periodic <-chan time.Time
	if o.config.PeriodicInterval > 0 {
		ticker := time.NewTicker(o.config.PeriodicInterval)
		defer ticker.Stop()
		periodic = ticker.C
	}

	retry := time.NewTimer(time.Hour)
	retry.Stop()
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			o.config.Logger.Println("Orchestrator stopped")
			return nil

		case reason := <-o.trigger:
			o.runPass(ctx, reason, retry)

		case <-periodic:
			o.Trigger("periodic")

		case <-retry.C:
			o.Trigger("retry")
		}
	}
}

func (o *Orchestrator) runPass(ctx context.Context, reason string, retry *time.Timer) {
	o.mu.Lock()
	o.state = Running
	o.stats.LastReason = reason
	o.mu.Unlock()

	o.config.Logger.Printf("Sync pass started (%s)", reason)
	report, err := o.rec.Reconcile(ctx)

	o.mu.Lock()
	o.stats.PassesRun++
	o.stats.LastReport = report
	o.stats.LastError = ""
	failed := err != nil || (report != nil && report.Outcome == offsync.Retry)
	if err != nil {
		o.stats.LastError = err.Error()
	}

	var delay time.Duration
	if failed && ctx.Err() == nil {
		delay = calculateBackoff(o.stats.ConsecutiveFail, o.config.RetryBase, o.config.RetryMax)
		o.stats.ConsecutiveFail++
		o.stats.NextRetryAt = time.Now().Add(delay)
	} else if !failed {
		o.stats.ConsecutiveFail = 0
		o.stats.NextRetryAt = time.Time{}
	}

	if len(o.trigger) > 0 {
		o.state = Triggered
	} else {
		o.state = Idle
	}
	o.mu.Unlock()

	switch {
	case err != nil:
		o.config.Logger.Printf("WARNING: Sync pass failed: %v", err)
	case report != nil:
		o.config.Logger.Printf("Sync pass finished: %s", report)
	}

	if delay > 0 {
		retry.Reset(delay)
		o.config.Logger.Printf("Retrying in %s", delay)
	} else if !failed {
		retry.Stop()
	}

	if !failed && report != nil && report.Requeued > 0 {
		o.Trigger("changes during sync")
	}

	if o.config.OnPass != nil {
		o.config.OnPass(report, err)
	}
}
