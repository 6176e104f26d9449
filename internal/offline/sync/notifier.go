package sync

import (
	"log"
	"os"
)

// Notifier receives the user-visible side effects of a pass.
type Notifier interface {
	// SyncStarted is called before the first entry of a non-empty pass.
	SyncStarted(pending int)
	// SyncCompleted is called after the last entry, following SyncDismissed.
	SyncCompleted(success, failure int)
	// SyncDismissed withdraws the in-progress indication.
	SyncDismissed()
}

// NopNotifier ignores every signal.
type NopNotifier struct{}

func (NopNotifier) SyncStarted(int)        {}
func (NopNotifier) SyncCompleted(int, int) {}
func (NopNotifier) SyncDismissed()         {}

// LogNotifier writes each signal as a log line.
type LogNotifier struct {
	Logger *log.Logger
}

// NewLogNotifier returns a notifier logging to logger, or to stderr with a
// [notify] prefix when logger is nil.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) SyncStarted(pending int) {
	n.Logger.Printf("Syncing %d pending operation(s)...", pending)
}

func (n *LogNotifier) SyncCompleted(success, failure int) {
	if failure > 0 {
		n.Logger.Printf("Sync finished: %d synced, %d failed (will retry)", success, failure)
		return
	}
	n.Logger.Printf("Sync finished: %d synced", success)
}

func (n *LogNotifier) SyncDismissed() {}

// MultiNotifier fans every signal out to all of its members in order.
type MultiNotifier []Notifier

func (m MultiNotifier) SyncStarted(pending int) {
	for _, n := range m {
		n.SyncStarted(pending)
	}
}

func (m MultiNotifier) SyncCompleted(success, failure int) {
	for _, n := range m {
		n.SyncCompleted(success, failure)
	}
}

func (m MultiNotifier) SyncDismissed() {
	for _, n := range m {
		n.SyncDismissed()
	}
}
