package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	offsync "github.com/mschirtzinger/offsync/internal/offline/sync"
	"github.com/mschirtzinger/offsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Replay pending operations against the API once",
	Long: `Run a single reconciliation pass.

Every queued CREATE, UPDATE and DELETE is sent to the API in order.
Successful entries leave the queue; failed entries stay queued for the next
pass. With --pull, records are then fetched from the API and merged into
the local store, skipping records with unsynchronized changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pull, _ := cmd.Flags().GetBool("pull")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		tokens, err := loadTokens()
		if err != nil {
			return err
		}

		rec, err := newReconciler(store, tokens, offsync.NewLogNotifier(sink.New("notify")))
		if err != nil {
			return err
		}

		report, err := rec.Reconcile(ctx)
		if err != nil {
			return err
		}
		printReport(report)

		if pull && !report.Skipped {
			refresh, err := rec.Refresh(ctx)
			if err != nil {
				return fmt.Errorf("failed to pull records: %w", err)
			}
			fmt.Printf("%s Pulled %d record(s): %d merged, %d kept local, %d failed\n",
				ui.RenderAccent("↓"), refresh.Fetched, refresh.Merged, refresh.Kept, refresh.Failed)
		}

		if report.Failure > 0 {
			return fmt.Errorf("%d operation(s) failed and remain queued", report.Failure)
		}
		return nil
	},
}

func printReport(report *offsync.Report) {
	switch {
	case report.Skipped:
		fmt.Printf("%s Not logged in; %d operation(s) stay queued. Run 'offsync login'.\n",
			ui.RenderWarn("⚠"), report.Pending)
	case report.Pending == 0:
		fmt.Printf("%s Nothing to sync\n", ui.RenderPass("✓"))
	case report.Failure == 0 && !report.Interrupted:
		fmt.Printf("%s Synced %d operation(s) in %v\n",
			ui.RenderPass("✓"), report.Success, report.Duration.Round(time.Millisecond))
	default:
		fmt.Printf("%s Synced %d, failed %d; failed operations will be retried\n",
			ui.RenderWarn("⚠"), report.Success, report.Failure)
	}
	if report.Moot > 0 {
		fmt.Printf("   Discarded %d obsolete operation(s)\n", report.Moot)
	}
	if report.Requeued > 0 {
		fmt.Printf("   Queued %d follow-up operation(s) for records edited during sync\n", report.Requeued)
	}
}

func init() {
	syncCmd.Flags().Bool("pull", false, "fetch and merge remote records after pushing")

	rootCmd.AddCommand(syncCmd)
}
