package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/offsync/internal/offline/auth"
	"github.com/mschirtzinger/offsync/internal/offline/daemon"
	"github.com/mschirtzinger/offsync/internal/offline/dashboard"
	"github.com/mschirtzinger/offsync/internal/offline/netmon"
	offsync "github.com/mschirtzinger/offsync/internal/offline/sync"
	"github.com/mschirtzinger/offsync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the sync daemon in the foreground",
	Long: `Run the sync orchestrator until interrupted.

The daemon:
  1. Probes the API and syncs when connectivity returns
  2. Watches the token file and syncs after login
  3. Syncs on start and on a periodic schedule
  4. Retries failed passes with exponential backoff

With --dashboard (or dashboard.enabled = true) a WebSocket feed of sync
activity is served on ws://127.0.0.1:<port>/ws.`,
	Annotations: map[string]string{"console-log": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("dashboard") {
			cfg.Dashboard.Enabled, _ = cmd.Flags().GetBool("dashboard")
		}
		if cmd.Flags().Changed("port") {
			cfg.Dashboard.Port, _ = cmd.Flags().GetInt("port")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runDaemon(ctx)
	},
}

func runDaemon(ctx context.Context) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	tokens, err := loadTokens()
	if err != nil {
		return err
	}

	notifiers := offsync.MultiNotifier{offsync.NewLogNotifier(sink.New("notify"))}
	var opts []daemon.Option

	var handler *dashboard.Handler
	var server *dashboard.Server
	if cfg.Dashboard.Enabled {
		server = dashboard.NewServer(&dashboard.Config{
			Port:   cfg.Dashboard.Port,
			Logger: sink.New("dashboard"),
		})
		handler = dashboard.NewHandler(server, sink.New("dashboard"))
		notifiers = append(notifiers, handler)
		opts = append(opts, daemon.WithServer(server), daemon.WithConnectivityObserver(handler))
	}

	rec, err := newReconciler(store, tokens, notifiers)
	if err != nil {
		return err
	}

	publishStats := func() {
		if handler == nil {
			return
		}
		total, dirty, err := store.CountRecords(ctx)
		if err != nil {
			return
		}
		pending, err := store.PendingCount(ctx)
		if err != nil {
			return
		}
		handler.UpdateStats(total, dirty, pending)
	}

	orch, err := daemon.NewOrchestrator(rec, &daemon.Config{
		PeriodicInterval: cfg.Sync.PeriodicInterval,
		SyncOnStart:      cfg.Sync.OnStart,
		RetryBase:        cfg.Sync.RetryBase,
		RetryMax:         cfg.Sync.RetryMax,
		OnPass: func(report *offsync.Report, err error) {
			publishStats()
		},
		Logger: sink.New("daemon"),
	})
	if err != nil {
		return err
	}

	monitor := netmon.New(netmon.Config{
		Prober:   netmon.NewHTTPProber(cfg.Monitor.ProbeURL, cfg.API.Timeout),
		Interval: cfg.Monitor.Interval,
		Logger:   sink.New("netmon"),
	})

	watcher, err := auth.NewFileWatcher(cfg.TokenFile, tokens, sink.New("auth"))
	if err != nil {
		return err
	}
	opts = append(opts,
		daemon.WithTokenWatcher(watcher),
		daemon.WithLogger(sink.New("daemon")),
		daemon.WithOnStart(func() {
			printBanner(server, tokens.HasToken())
			publishStats()
		}),
	)

	d, err := daemon.New(orch, monitor, tokens, opts...)
	if err != nil {
		return err
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := orch.Stats()
	fmt.Printf("\n%s Daemon stopped after %d pass(es)\n", ui.RenderPass("✓"), stats.PassesRun)
	return nil
}

// printBanner runs once the dashboard, if any, is bound so the real port
// is shown.
func printBanner(server *dashboard.Server, loggedIn bool) {
	fmt.Printf("%s offsync daemon started\n", ui.RenderAccent("●"))
	fmt.Printf("   API: %s\n", cfg.API.BaseURL)
	fmt.Printf("   Database: %s\n", cfg.DBPath)
	if !loggedIn {
		fmt.Printf("   %s not logged in; run 'offsync login' to start syncing\n", ui.RenderWarn("⚠"))
	}
	if server != nil {
		fmt.Printf("   Dashboard: %s\n", server.URL())
	}
	fmt.Println("\nPress Ctrl+C to stop...")
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "serve the WebSocket dashboard")
	daemonCmd.Flags().IntP("port", "p", 8787, "dashboard port")

	rootCmd.AddCommand(daemonCmd)
}
