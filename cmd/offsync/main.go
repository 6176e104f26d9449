// Command offsync keeps a local board-game collection usable offline and
// replays local changes against the remote service when it is reachable.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mschirtzinger/offsync/internal/config"
	"github.com/mschirtzinger/offsync/internal/logging"
)

var (
	homeFlag string
	verbose  bool

	v    *viper.Viper
	cfg  *config.Config
	sink = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "offsync",
	Short: "Offline-first board-game records with deferred sync",
	Long: `offsync stores board-game records in a local SQLite database and queues
every create, edit and delete in a durable pending-operation log. The log is
replayed against the remote API by 'offsync sync' or continuously by
'offsync daemon', which syncs whenever connectivity returns.

Configuration is read from $OFFSYNC_HOME/config.toml (default ~/.offsync),
OFFSYNC_* environment variables, and the flags below.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		home := homeFlag
		if home == "" {
			home = config.HomeDir()
		}

		v = config.New(home)
		flags := cmd.Root().PersistentFlags()
		for key, flag := range map[string]string{
			"api.base_url": "api-url",
			"db_path":      "db",
			"log.file":     "log-file",
		} {
			if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
				return fmt.Errorf("failed to bind --%s: %w", flag, err)
			}
		}

		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded

		// Long-running commands always log to the console; one-shot
		// commands only with --verbose.
		quiet := !verbose && cmd.Annotations["console-log"] != "true"
		sink = logging.Open(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
			Quiet:      quiet,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = sink.Close()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "records", Title: "Record Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&homeFlag, "home", "", "offsync home directory (default $OFFSYNC_HOME or ~/.offsync)")
	flags.String("api-url", "", "remote API base URL")
	flags.String("db", "", "path to the local database")
	flags.String("log-file", "", "also write logs to this rotating file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log sync activity to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
