package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/offsync/internal/offline/db"
	"github.com/mschirtzinger/offsync/internal/offline/migrate"
	"github.com/mschirtzinger/offsync/internal/offline/schema"
	"github.com/mschirtzinger/offsync/internal/ui"
)

var recordsCmd = &cobra.Command{
	Use:     "records",
	GroupID: "records",
	Short:   "Create, edit and inspect local records",
	Long: `Manage board-game records in the local store.

Every change is written locally first and queued for the API, so these
commands work offline. Run 'offsync sync' or keep 'offsync daemon' running
to push them.`,
}

// recordView is the list/show representation.
type recordView struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Players        int      `json:"nr_players" yaml:"nr_players"`
	Date           string   `json:"date,omitempty" yaml:"date,omitempty"`
	FamilyFriendly bool     `json:"family_friendly" yaml:"family_friendly"`
	Latitude       *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	Version        int      `json:"version" yaml:"version"`
	NeedsSync      bool     `json:"needs_sync" yaml:"needs_sync"`
}

func toView(rec *schema.Record) recordView {
	return recordView{
		ID:             rec.ID,
		Name:           rec.Name,
		Players:        rec.Players,
		Date:           rec.Date,
		FamilyFriendly: rec.FamilyFriendly,
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
		Version:        rec.Version,
		NeedsSync:      rec.NeedsSync,
	}
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local records",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		dirtyOnly, _ := cmd.Flags().GetBool("dirty")
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		filter := db.ListFilter{Limit: limit}
		if dirtyOnly {
			dirty := true
			filter.NeedsSync = &dirty
		}
		records, err := store.ListRecordsFilter(ctx, filter)
		if err != nil {
			return err
		}

		views := make([]recordView, 0, len(records))
		for _, rec := range records {
			views = append(views, toView(rec))
		}

		switch output {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(views)
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(views)
		case "table", "":
			if len(views) == 0 {
				fmt.Println("No records")
				return nil
			}
			fmt.Println(renderRecordTable(views))
			return nil
		default:
			return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
		}
	},
}

func renderRecordTable(views []recordView) string {
	rows := make([][]string, 0, len(views))
	for _, view := range views {
		state := ui.RenderPass("synced")
		if view.NeedsSync {
			state = ui.RenderWarn("pending")
		}
		family := ""
		if view.FamilyFriendly {
			family = "yes"
		}
		location := ""
		if view.Latitude != nil && view.Longitude != nil {
			location = fmt.Sprintf("%.4f, %.4f", *view.Latitude, *view.Longitude)
		}
		rows = append(rows, []string{
			view.ID, view.Name, strconv.Itoa(view.Players), view.Date, family, location, state,
		})
	}
	return ui.Table([]string{"ID", "NAME", "PLAYERS", "DATE", "FAMILY", "LOCATION", "SYNC"}, rows)
}

var recordsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a record (queued as CREATE)",
	Long: `Add a record to the local store with a temporary id and queue it for
creation on the API. The server assigns the permanent id on sync.

--date accepts YYYY-MM-DD or natural language such as "today" or
"next friday".`,
	Example: `  offsync records add --name Azul --players 4 --date today --family
  offsync records add --name Root --players 2 --lat 44.43 --lng 26.10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rec := &schema.Record{}
		if err := applyRecordFlags(cmd, rec, time.Now()); err != nil {
			return err
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		stored, err := store.CreateLocal(ctx, rec)
		if err != nil {
			return err
		}
		fmt.Printf("%s Added %s (%s), queued for sync\n", ui.RenderPass("✓"), stored.Name, stored.ID)
		return nil
	},
}

var recordsEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a record (queued as UPDATE)",
	Long: `Change the given fields of a record. Only flags that are passed are
applied. Use --clear-location to remove the coordinates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.GetRecord(ctx, args[0])
		if errors.Is(err, db.ErrRecordNotFound) {
			return fmt.Errorf("record %s not found", args[0])
		}
		if err != nil {
			return err
		}

		if err := applyRecordFlags(cmd, rec, time.Now()); err != nil {
			return err
		}

		stored, err := store.UpdateLocal(ctx, rec)
		if err != nil {
			return err
		}
		fmt.Printf("%s Updated %s (version %d), queued for sync\n", ui.RenderPass("✓"), stored.ID, stored.Version)
		return nil
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a record (queued as DELETE)",
	Long: `Delete a record locally. Records the API has never seen are dropped
together with their queued operations; otherwise a DELETE is queued.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteLocal(ctx, args[0]); err != nil {
			if errors.Is(err, db.ErrRecordNotFound) {
				return fmt.Errorf("record %s not found", args[0])
			}
			return err
		}
		fmt.Printf("%s Deleted %s\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

var recordsPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch records from the API into the local store",
	Long: `Fetch every record from the API and merge it locally. Records with
unsynchronized local changes are kept as they are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		tokens, err := loadTokens()
		if err != nil {
			return err
		}
		rec, err := newReconciler(store, tokens, nil)
		if err != nil {
			return err
		}

		refresh, err := rec.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("failed to pull records: %w", err)
		}
		if refresh.Skipped {
			fmt.Printf("%s Not logged in; run 'offsync login' first\n", ui.RenderWarn("⚠"))
			return nil
		}
		fmt.Printf("%s Pulled %d record(s): %d merged, %d kept local, %d failed\n",
			ui.RenderPass("✓"), refresh.Fetched, refresh.Merged, refresh.Kept, refresh.Failed)
		return nil
	},
}

var recordsImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import records from a JSONL file",
	Long: `Import one record per line.

By default lines are treated as server copies and must carry an _id.
With --local every record is queued as a new CREATE and pushed on the next
sync, which is how a fresh server is seeded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		backup, _ := cmd.Flags().GetBool("backup")
		asLocal, _ := cmd.Flags().GetBool("local")
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := migrate.Import(ctx, store, migrate.ImportOptions{
			From:    args[0],
			DryRun:  dryRun,
			Backup:  backup,
			AsLocal: asLocal,
		})
		if err != nil {
			return err
		}

		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		fmt.Printf("%s %s %d record(s), skipped %d\n", ui.RenderPass("✓"), verb, result.Imported, result.Skipped)
		if result.BackupCreated != "" {
			fmt.Printf("   Backup: %s\n", result.BackupCreated)
		}
		if len(result.Errors) > 0 {
			fmt.Printf("%s %d error(s):\n", ui.RenderWarn("⚠"), len(result.Errors))
			for _, e := range result.Errors {
				fmt.Printf("   %s\n", e)
			}
		}
		return nil
	},
}

var recordsExportCmd = &cobra.Command{
	Use:   "export <file.jsonl>",
	Short: "Export local records to a JSONL file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := migrate.Export(ctx, store, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s Exported %d record(s) to %s\n", ui.RenderPass("✓"), n, args[0])
		return nil
	},
}

// applyRecordFlags copies the record flags that were set on cmd into rec.
func applyRecordFlags(cmd *cobra.Command, rec *schema.Record, now time.Time) error {
	flags := cmd.Flags()

	if flags.Changed("name") {
		name, _ := flags.GetString("name")
		rec.Name = strings.TrimSpace(name)
	}
	if flags.Changed("players") {
		rec.Players, _ = flags.GetInt("players")
	}
	if flags.Changed("family") {
		rec.FamilyFriendly, _ = flags.GetBool("family")
	}
	if flags.Changed("date") {
		raw, _ := flags.GetString("date")
		date, err := parseDate(raw, now)
		if err != nil {
			return err
		}
		rec.Date = date
	}
	if flags.Changed("lat") {
		lat, _ := flags.GetFloat64("lat")
		rec.Latitude = &lat
	}
	if flags.Changed("lng") {
		lng, _ := flags.GetFloat64("lng")
		rec.Longitude = &lng
	}
	if clearLocation, _ := flags.GetBool("clear-location"); clearLocation {
		rec.Latitude = nil
		rec.Longitude = nil
	}
	return rec.Validate()
}

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDate accepts YYYY-MM-DD or a natural-language date relative to now.
// An empty input clears the date.
func parseDate(input string, now time.Time) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}
	if t, err := time.Parse(schema.DateLayout, input); err == nil {
		return t.Format(schema.DateLayout), nil
	}

	result, err := dateParser.Parse(input, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", input, err)
	}
	if result == nil {
		return "", fmt.Errorf("unrecognized date %q (use YYYY-MM-DD or e.g. \"next friday\")", input)
	}
	return result.Time.Format(schema.DateLayout), nil
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("name", "n", "", "game name")
	cmd.Flags().Int("players", 0, "number of players")
	cmd.Flags().StringP("date", "d", "", "date played (YYYY-MM-DD or natural language)")
	cmd.Flags().Bool("family", false, "family friendly")
	cmd.Flags().Float64("lat", 0, "latitude")
	cmd.Flags().Float64("lng", 0, "longitude")
}

func init() {
	addRecordFlags(recordsAddCmd)
	_ = recordsAddCmd.MarkFlagRequired("name")

	addRecordFlags(recordsEditCmd)
	recordsEditCmd.Flags().Bool("clear-location", false, "remove latitude and longitude")

	recordsListCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
	recordsListCmd.Flags().Bool("dirty", false, "only records with unsynchronized changes")
	recordsListCmd.Flags().Int("limit", 0, "maximum number of records (0 for all)")

	recordsImportCmd.Flags().Bool("dry-run", false, "validate without writing")
	recordsImportCmd.Flags().Bool("backup", false, "snapshot the database before importing")
	recordsImportCmd.Flags().Bool("local", false, "queue records as local creates")

	recordsCmd.AddCommand(recordsListCmd, recordsAddCmd, recordsEditCmd, recordsDeleteCmd,
		recordsPullCmd, recordsImportCmd, recordsExportCmd)
	rootCmd.AddCommand(recordsCmd)
}
