package daemon_test

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/mschirtzinger/offsync/internal/offline/auth"
	"github.com/mschirtzinger/offsync/internal/offline/daemon"
	"github.com/mschirtzinger/offsync/internal/offline/db"
	"github.com/mschirtzinger/offsync/internal/offline/netmon"
	"github.com/mschirtzinger/offsync/internal/offline/remote"
	offsync "github.com/mschirtzinger/offsync/internal/offline/sync"
)

// This example demonstrates running the sync daemon until interrupted.
// Note: This is for documentation only and won't run as a test.
func ExampleNew() {
	store, err := db.Open("offsync.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	tokens := auth.NewTokenSource("")
	client, err := remote.New(remote.Config{BaseURL: "http://localhost:3000"}, tokens)
	if err != nil {
		log.Fatal(err)
	}

	orch, err := daemon.NewOrchestrator(offsync.New(store, client, tokens, offsync.Config{}), daemon.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}

	monitor := netmon.New(netmon.Config{
		Prober:   netmon.NewHTTPProber("http://localhost:3000", 5*time.Second),
		Interval: 2 * time.Second,
	})

	// Picks up `offsync login` from another process
	watcher, err := auth.NewFileWatcher("token", tokens, nil)
	if err != nil {
		log.Fatal(err)
	}

	d, err := daemon.New(orch, monitor, tokens, daemon.WithTokenWatcher(watcher))
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

// This example demonstrates driving an orchestrator by hand.
func ExampleOrchestrator_Trigger() {
	var rec offsync.Reconciler // e.g. from offsync.New

	config := daemon.DefaultConfig()
	config.PeriodicInterval = 0
	config.OnPass = func(report *offsync.Report, err error) {
		if err == nil {
			log.Printf("pass finished: %s", report)
		}
	}

	orch, err := daemon.NewOrchestrator(rec, config)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go orch.Run(ctx)

	// Calls made while a pass is running collapse into one follow-up pass
	orch.Trigger("user edit")
	orch.NotifyConnectivity(false)
	orch.NotifyConnectivity(true)
}
