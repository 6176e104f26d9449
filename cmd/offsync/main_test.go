package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/offsync/internal/offline/auth"
	"github.com/mschirtzinger/offsync/internal/offline/db"
	"github.com/mschirtzinger/offsync/internal/offline/schema"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty clears", input: "", want: ""},
		{name: "iso date", input: "2023-12-24", want: "2023-12-24"},
		{name: "padded iso date", input: "  2023-12-24 ", want: "2023-12-24"},
		{name: "tomorrow", input: "tomorrow", want: "2024-05-02"},
		{name: "yesterday", input: "yesterday", want: "2024-04-30"},
		{name: "nonsense", input: "blorp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDate(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseDate(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDate(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestReadToken(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "single line", input: "abc123\n", want: "abc123"},
		{name: "leading blank lines", input: "\n\n  tok  \nother\n", want: "tok"},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readToken(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("readToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newRecordCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addRecordFlags(cmd)
	cmd.Flags().Bool("clear-location", false, "")
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

func TestApplyRecordFlags(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	lat, lng := 44.4, 26.1

	t.Run("only changed flags are applied", func(t *testing.T) {
		rec := &schema.Record{ID: "srv_1", Name: "Azul", Players: 4, FamilyFriendly: true}
		cmd := newRecordCmd(t, "--players", "2")
		if err := applyRecordFlags(cmd, rec, now); err != nil {
			t.Fatalf("applyRecordFlags failed: %v", err)
		}
		if rec.Name != "Azul" || rec.Players != 2 || !rec.FamilyFriendly {
			t.Errorf("record = %+v", rec)
		}
	})

	t.Run("location requires both coordinates", func(t *testing.T) {
		rec := &schema.Record{ID: "srv_1", Name: "Azul"}
		cmd := newRecordCmd(t, "--lat", "44.4")
		if err := applyRecordFlags(cmd, rec, now); err == nil {
			t.Error("expected validation error for latitude without longitude")
		}
	})

	t.Run("clear location", func(t *testing.T) {
		rec := &schema.Record{ID: "srv_1", Name: "Azul", Latitude: &lat, Longitude: &lng}
		cmd := newRecordCmd(t, "--clear-location")
		if err := applyRecordFlags(cmd, rec, now); err != nil {
			t.Fatalf("applyRecordFlags failed: %v", err)
		}
		if rec.HasLocation() {
			t.Error("location not cleared")
		}
	})

	t.Run("natural language date", func(t *testing.T) {
		rec := &schema.Record{ID: "srv_1", Name: "Azul"}
		cmd := newRecordCmd(t, "--date", "tomorrow")
		if err := applyRecordFlags(cmd, rec, now); err != nil {
			t.Fatalf("applyRecordFlags failed: %v", err)
		}
		if rec.Date != "2024-05-02" {
			t.Errorf("Date = %q, want 2024-05-02", rec.Date)
		}
	})
}

func TestRenderRecordTable(t *testing.T) {
	lat, lng := 44.43, 26.1
	out := renderRecordTable([]recordView{
		{ID: "srv_1", Name: "Azul", Players: 4, FamilyFriendly: true},
		{ID: "temp_01", Name: "Root", Players: 2, Latitude: &lat, Longitude: &lng, NeedsSync: true},
	})
	for _, want := range []string{"srv_1", "Azul", "temp_01", "44.4300, 26.1000", "synced", "pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

// fakeBoardgames accepts creates and assigns sequential server ids.
type fakeBoardgames struct {
	mu      sync.Mutex
	created []schema.Record
}

func (f *fakeBoardgames) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost || r.URL.Path != "/api/boardgames" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var rec schema.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.created = append(f.created, rec)
	rec.ID = "srv_" + strconv.Itoa(len(f.created))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

func execute(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("offsync %s failed: %v", strings.Join(args, " "), err)
	}
}

func TestAddThenSync(t *testing.T) {
	home := t.TempDir()
	api := &fakeBoardgames{}
	server := httptest.NewServer(api)
	defer server.Close()

	execute(t, "--home", home, "records", "add", "--name", "Azul", "--players", "4")

	store, err := db.Open(filepath.Join(home, "offsync.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	records, err := store.ListRecords(context.Background())
	store.Close()
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(records) != 1 || !records[0].IsTemp() || !records[0].NeedsSync {
		t.Fatalf("records after add = %+v", records)
	}

	if err := auth.WriteTokenFile(filepath.Join(home, "token"), "test-token"); err != nil {
		t.Fatalf("failed to write token: %v", err)
	}
	execute(t, "--home", home, "--api-url", server.URL, "sync")

	if len(api.created) != 1 || api.created[0].Name != "Azul" {
		t.Fatalf("server received %+v", api.created)
	}

	store, err = db.Open(filepath.Join(home, "offsync.db"))
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()

	rec, err := store.GetRecord(context.Background(), "srv_1")
	if err != nil {
		t.Fatalf("canonical record missing: %v", err)
	}
	if rec.NeedsSync {
		t.Error("record still marked dirty after sync")
	}
	if n, _ := store.PendingCount(context.Background()); n != 0 {
		t.Errorf("pending = %d after sync, want 0", n)
	}
	if total, _, _ := store.CountRecords(context.Background()); total != 1 {
		t.Errorf("records = %d after sync, want 1", total)
	}
}
