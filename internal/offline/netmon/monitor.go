package netmon

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// Config holds monitor settings.
type Config struct {
	// Prober performs the periodic check. If nil, only Report() feeds the
	// monitor.
	Prober Prober

	// Interval between probes. Default: 2s
	Interval time.Duration

	// Logger for transition messages. If nil, logs to stderr with [netmon] prefix.
	Logger *log.Logger
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		Interval: 2 * time.Second,
		Logger:   log.New(os.Stderr, "[netmon] ", log.LstdFlags),
	}
}

// Monitor publishes de-duplicated connectivity states. The consumer never
// receives the same value twice in a row, and a brief outage that it has
// not read yet collapses to at most offline followed by online.
type Monitor struct {
	config  Config
	updates chan bool

	mu     sync.Mutex
	known  bool // a state has been observed
	online bool
	closed bool
}

// New creates a monitor. Call Run to start probing.
func New(config Config) *Monitor {
	if config.Interval <= 0 {
		config.Interval = 2 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[netmon] ", log.LstdFlags)
	}
	return &Monitor{
		config:  config,
		updates: make(chan bool, 2),
	}
}

// Updates returns the connectivity stream. It is closed when Run returns.
func (m *Monitor) Updates() <-chan bool {
	return m.updates
}

// Online returns the last observed state. ok is false until the first
// observation.
func (m *Monitor) Online() (online, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online, m.known
}

// Report feeds an observation from an external source through the same
// de-duplication as probe results. It reports whether the value was a
// change and therefore published.
func (m *Monitor) Report(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || (m.known && m.online == online) {
		return false
	}
	m.known = true
	m.online = online

	m.publish(online)

	if online {
		m.config.Logger.Printf("connectivity: online")
	} else {
		m.config.Logger.Printf("connectivity: offline")
	}
	return true
}

// publish queues online for the consumer. Published values alternate, so
// when the buffer is full the consumer last saw online itself if an odd
// number of values was still unread, and !online otherwise. Draining and
// re-queueing on that parity means the consumer never reads the same value
// twice in a row and still observes a restore after a dropped outage.
// Callers hold m.mu.
func (m *Monitor) publish(online bool) {
	select {
	case m.updates <- online:
		return
	default:
	}

	unread := 0
	for drained := false; !drained; {
		select {
		case <-m.updates:
			unread++
		default:
			drained = true
		}
	}
	if unread%2 == 1 {
		m.updates <- !online
	}
	m.updates <- online
}

// Run probes at the configured interval until ctx is cancelled, then closes
// the Updates() channel. The first probe runs immediately.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.close()

	if m.config.Prober == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.Interval)
	defer cancel()
	online := m.config.Prober.Probe(probeCtx)
	if ctx.Err() != nil {
		// Shutdown interrupted the probe; its result says nothing.
		return
	}
	m.Report(online)
}

func (m *Monitor) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.updates)
}
