package daemon

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/offsync/internal/offline/auth"
	"github.com/mschirtzinger/offsync/internal/offline/netmon"
)

// ConnectivityObserver receives every published connectivity state.
type ConnectivityObserver interface {
	OnConnectivity(online bool)
}

// Server is a background component, such as the dashboard, whose Start
// returns once it is serving.
type Server interface {
	Start() error
	Stop() error
}

// Daemon runs the orchestrator together with its event sources.
type Daemon struct {
	orch    *Orchestrator
	monitor *netmon.Monitor
	tokens  *auth.TokenSource
	watcher *auth.FileWatcher
	server  Server
	observe []ConnectivityObserver
	onStart func()
	logger  *log.Logger
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithTokenWatcher keeps the credential in step with a token file.
func WithTokenWatcher(w *auth.FileWatcher) Option {
	return func(d *Daemon) { d.watcher = w }
}

// WithServer runs srv alongside the daemon and stops it on shutdown.
func WithServer(srv Server) Option {
	return func(d *Daemon) { d.server = srv }
}

// WithConnectivityObserver forwards every connectivity state to obs.
func WithConnectivityObserver(obs ConnectivityObserver) Option {
	return func(d *Daemon) { d.observe = append(d.observe, obs) }
}

// WithOnStart registers fn to run once the server, if any, is listening and
// before any pass starts.
func WithOnStart(fn func()) Option {
	return func(d *Daemon) { d.onStart = fn }
}

// WithLogger sets the daemon logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Daemon) { d.logger = logger }
}

// New creates a daemon. orch, monitor and tokens are required.
func New(orch *Orchestrator, monitor *netmon.Monitor, tokens *auth.TokenSource, opts ...Option) (*Daemon, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if monitor == nil {
		return nil, fmt.Errorf("monitor cannot be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}
	d := &Daemon{
		orch:    orch,
		monitor: monitor,
		tokens:  tokens,
		logger:  log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Orchestrator returns the daemon's orchestrator.
func (d *Daemon) Orchestrator() *Orchestrator {
	return d.orch
}

// Run blocks until ctx is cancelled or a component fails, then stops every
// component and waits for them.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Println("Starting daemon")

	if d.server != nil {
		if err := d.server.Start(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}
	if d.onStart != nil {
		d.onStart()
	}

	// Subscribe before the watcher loads the file so the first token is
	// not missed.
	d.orch.SetCredentialPresent(d.tokens.HasToken())
	tokenUpdates, cancelTokens := d.tokens.Subscribe()
	defer cancelTokens()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.orch.Run(ctx)
	})

	g.Go(func() error {
		return d.monitor.Run(ctx)
	})

	g.Go(func() error {
		for online := range d.monitor.Updates() {
			d.orch.NotifyConnectivity(online)
			for _, obs := range d.observe {
				obs.OnConnectivity(online)
			}
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case token, ok := <-tokenUpdates:
				if !ok {
					return nil
				}
				d.orch.NotifyCredential(token)
			}
		}
	})

	if d.watcher != nil {
		g.Go(func() error {
			if err := d.watcher.Run(ctx); err != nil {
				return fmt.Errorf("token watcher: %w", err)
			}
			return nil
		})
	}

	if d.server != nil {
		g.Go(func() error {
			<-ctx.Done()
			return d.server.Stop()
		})
	}

	err := g.Wait()
	d.logger.Println("Daemon stopped")
	return err
}
