package dashboard

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// Broadcaster delivers a message to every connected client.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Handler turns sync and connectivity events into dashboard messages.
// It satisfies the reconciler's notifier and the daemon's connectivity
// observer so it can be plugged into both directly.
type Handler struct {
	out    Broadcaster
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates a handler broadcasting through out.
func NewHandler(out Broadcaster, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{out: out, logger: logger}
}

// SyncStarted announces a pass over pending entries.
func (h *Handler) SyncStarted(pending int) {
	h.mu.Lock()
	h.stats.Syncing = true
	h.stats.Pending = pending
	h.mu.Unlock()

	h.send(MessageTypeSyncStarted, SyncStartedData{Pending: pending})
	h.broadcastStats()
}

// SyncCompleted publishes the outcome of a pass.
func (h *Handler) SyncCompleted(success, failure int) {
	now := time.Now()
	h.mu.Lock()
	h.stats.Passes++
	h.stats.LastSuccess = success
	h.stats.LastFailure = failure
	h.stats.LastSyncAt = &now
	h.mu.Unlock()

	h.send(MessageTypeSyncCompleted, SyncCompletedData{Success: success, Failure: failure})
	h.broadcastStats()
}

// SyncDismissed clears the in-progress indication.
func (h *Handler) SyncDismissed() {
	h.mu.Lock()
	h.stats.Syncing = false
	h.mu.Unlock()

	h.send(MessageTypeSyncDismissed, nil)
}

// OnConnectivity publishes an online/offline transition.
func (h *Handler) OnConnectivity(online bool) {
	h.mu.Lock()
	changed := h.stats.Online != online
	h.stats.Online = online
	h.mu.Unlock()

	h.send(MessageTypeConnectivity, ConnectivityData{Online: online})
	if changed {
		h.broadcastStats()
	}
}

// UpdateStats replaces the store counters, typically after a pass.
func (h *Handler) UpdateStats(records, dirty, pending int) {
	h.mu.Lock()
	h.stats.Records = records
	h.stats.Dirty = dirty
	h.stats.Pending = pending
	h.mu.Unlock()

	h.broadcastStats()
}

// Stats returns a copy of the current statistics.
func (h *Handler) Stats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handler) broadcastStats() {
	h.send(MessageTypeStats, h.Stats())
}

func (h *Handler) send(typ MessageType, payload any) {
	msg := Message{Type: typ, Timestamp: time.Now()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Printf("Failed to marshal %s data: %v", typ, err)
			return
		}
		msg.Data = data
	}
	h.out.Broadcast(msg)
}
