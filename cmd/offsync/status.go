package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/offsync/internal/offline/auth"
	"github.com/mschirtzinger/offsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show local store and queue status",
	Long: `Display the local database, the number of records and unsynchronized
records, the pending-operation queue, and whether a token is present.

Use --ops to list every queued operation with its attempt count and last
error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		showOps, _ := cmd.Flags().GetBool("ops")
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		total, dirty, err := store.CountRecords(ctx)
		if err != nil {
			return err
		}
		ops, err := store.ListPending(ctx)
		if err != nil {
			return err
		}
		version, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		token, err := auth.ReadTokenFile(cfg.TokenFile)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s offsync status\n\n", ui.RenderAccent("●"))
		fmt.Printf("Database: %s (schema v%d)\n", cfg.DBPath, version)
		if info, err := os.Stat(cfg.DBPath); err == nil {
			fmt.Printf("Size: %s\n", formatSize(info.Size()))
		}
		fmt.Printf("API: %s\n", cfg.API.BaseURL)
		if token != "" {
			fmt.Printf("Login: %s\n", ui.RenderPass("token present"))
		} else {
			fmt.Printf("Login: %s\n", ui.RenderWarn("not logged in"))
		}
		fmt.Printf("Records: %d (%d unsynchronized)\n", total, dirty)

		failing := 0
		for _, op := range ops {
			if op.Attempts > 0 {
				failing++
			}
		}
		switch {
		case len(ops) == 0:
			fmt.Printf("Queue: %s\n", ui.RenderPass("empty"))
		case failing > 0:
			fmt.Printf("Queue: %d operation(s), %s\n", len(ops), ui.RenderWarn(fmt.Sprintf("%d with failed attempts", failing)))
		default:
			fmt.Printf("Queue: %d operation(s)\n", len(ops))
		}

		if showOps && len(ops) > 0 {
			rows := make([][]string, 0, len(ops))
			for _, op := range ops {
				rows = append(rows, []string{
					fmt.Sprintf("%d", op.ID),
					string(op.Type),
					op.RecordID,
					op.Timestamp.Local().Format("2006-01-02 15:04:05"),
					fmt.Sprintf("%d", op.Attempts),
					op.LastError,
				})
			}
			fmt.Println()
			fmt.Println(ui.Table([]string{"#", "TYPE", "RECORD", "QUEUED", "ATTEMPTS", "LAST ERROR"}, rows))
		}
		fmt.Println()
		return nil
	},
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	statusCmd.Flags().Bool("ops", false, "list queued operations")

	rootCmd.AddCommand(statusCmd)
}
