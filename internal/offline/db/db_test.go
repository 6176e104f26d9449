package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mschirtzinger/offsync/internal/offline/schema"
)

// testDB opens a migrated database in a temporary directory.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func opTypes(t *testing.T, db *DB, recordID string) []schema.OperationType {
	t.Helper()
	ops, err := db.OperationsForRecord(context.Background(), recordID)
	if err != nil {
		t.Fatalf("OperationsForRecord() failed: %v", err)
	}
	var types []schema.OperationType
	for _, op := range ops {
		types = append(types, op.Type)
	}
	return types
}

func equalTypes(a, b []schema.OperationType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOpen_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := testDB(t)
	if err := db.InitSchema(); err != nil {
		t.Fatalf("second InitSchema() failed: %v", err)
	}

	v, err := db.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if v != LatestVersion {
		t.Errorf("SchemaVersion() = %d, want %d", v, LatestVersion)
	}

	for _, table := range []string{"records", "pending_operations"} {
		var count int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestInitSchema_MigratesV1Database(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "v1.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if err := db.migrateTo(ctx, 1); err != nil {
		t.Fatalf("migrateTo(1) failed: %v", err)
	}
	_, err = db.conn.Exec(`INSERT INTO records (id, name, nr_players, date, family_friendly)
		VALUES ('srv_1', 'Catan', 4, '2020-01-02', 1)`)
	if err != nil {
		t.Fatalf("failed to seed v1 row: %v", err)
	}

	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	rec, err := db.GetRecord(ctx, "srv_1")
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if rec.Name != "Catan" || rec.Players != 4 || !rec.FamilyFriendly || rec.Date != "2020-01-02" {
		t.Errorf("migrated record = %+v", rec)
	}
	if rec.NeedsSync {
		t.Error("migrated record NeedsSync = true, want false")
	}
	if rec.Version != 1 {
		t.Errorf("migrated record Version = %d, want 1", rec.Version)
	}
	if rec.Latitude != nil || rec.Longitude != nil {
		t.Error("migrated record has location, want none")
	}
}

func TestRecordCRUD(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	lat, lon := 46.77, 23.59
	rec := &schema.Record{ID: "srv_1", Name: "Catan", Players: 4, Version: 2, Latitude: &lat, Longitude: &lon}
	if err := db.UpsertRecord(ctx, rec); err != nil {
		t.Fatalf("UpsertRecord() failed: %v", err)
	}

	got, err := db.GetRecord(ctx, "srv_1")
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if !got.SameFields(rec) || got.Version != 2 {
		t.Errorf("GetRecord() = %+v, want %+v", got, rec)
	}

	rec.Name = "Catan: Seafarers"
	if err := db.UpsertRecord(ctx, rec); err != nil {
		t.Fatalf("second UpsertRecord() failed: %v", err)
	}
	got, _ = db.GetRecord(ctx, "srv_1")
	if got.Name != "Catan: Seafarers" {
		t.Errorf("Name = %q after overwrite", got.Name)
	}

	if err := db.DeleteRecord(ctx, "srv_1"); err != nil {
		t.Fatalf("DeleteRecord() failed: %v", err)
	}
	if err := db.DeleteRecord(ctx, "srv_1"); err != nil {
		t.Errorf("DeleteRecord() not idempotent: %v", err)
	}
	if _, err := db.GetRecord(ctx, "srv_1"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("GetRecord() after delete error = %v, want ErrRecordNotFound", err)
	}
}

func TestUpsertRecord_Invalid(t *testing.T) {
	db := testDB(t)
	err := db.UpsertRecord(context.Background(), &schema.Record{ID: "srv_1"})
	if err == nil {
		t.Fatal("UpsertRecord() with empty name expected error")
	}
}

func TestListRecordsFilter(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	for i, name := range []string{"azul", "Brass", "Carcassonne", "Dominion"} {
		rec := &schema.Record{ID: fmt.Sprintf("srv_%d", i), Name: name, Version: 1, NeedsSync: i%2 == 0}
		if err := db.UpsertRecord(ctx, rec); err != nil {
			t.Fatalf("UpsertRecord() failed: %v", err)
		}
	}

	all, err := db.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords() failed: %v", err)
	}
	if len(all) != 4 || all[0].Name != "azul" || all[3].Name != "Dominion" {
		t.Errorf("ListRecords() order = %v", names(all))
	}

	dirty := true
	got, err := db.ListRecordsFilter(ctx, ListFilter{NeedsSync: &dirty})
	if err != nil {
		t.Fatalf("ListRecordsFilter() failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("NeedsSync filter returned %d records, want 2", len(got))
	}

	page, err := db.ListRecordsFilter(ctx, ListFilter{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListRecordsFilter() failed: %v", err)
	}
	if len(page) != 2 || page[0].Name != "Brass" {
		t.Errorf("page = %v, want [Brass Carcassonne]", names(page))
	}

	tail, err := db.ListRecordsFilter(ctx, ListFilter{Offset: 3})
	if err != nil {
		t.Fatalf("ListRecordsFilter() failed: %v", err)
	}
	if len(tail) != 1 {
		t.Errorf("offset-only page has %d records, want 1", len(tail))
	}

	total, dirtyCount, err := db.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords() failed: %v", err)
	}
	if total != 4 || dirtyCount != 2 {
		t.Errorf("CountRecords() = %d, %d; want 4, 2", total, dirtyCount)
	}
}

func names(recs []*schema.Record) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}

func TestOperationLog(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	id1, err := db.AppendOperation(ctx, "rec_1", schema.OpUpdate)
	if err != nil {
		t.Fatalf("AppendOperation() failed: %v", err)
	}
	id2, _ := db.AppendOperation(ctx, "rec_1", schema.OpUpdate)
	id3, _ := db.AppendOperation(ctx, "rec_2", schema.OpDelete)
	if !(id1 < id2 && id2 < id3) {
		t.Fatalf("ids not increasing: %d %d %d", id1, id2, id3)
	}

	if _, err := db.AppendOperation(ctx, "rec_1", "MERGE"); err == nil {
		t.Error("AppendOperation() with unknown type expected error")
	}

	ops, err := db.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() failed: %v", err)
	}
	if len(ops) != 3 || ops[0].ID != id1 || ops[2].ID != id3 {
		t.Fatalf("ListPending() = %v", ops)
	}
	if ops[0].Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}

	if err := db.MarkAttemptFailed(ctx, id2, errors.New("boom")); err != nil {
		t.Fatalf("MarkAttemptFailed() failed: %v", err)
	}
	ops, _ = db.ListPending(ctx)
	if ops[1].Attempts != 1 || ops[1].LastError != "boom" {
		t.Errorf("after MarkAttemptFailed op = %+v", ops[1])
	}

	if err := db.RemoveOperation(ctx, id1); err != nil {
		t.Fatalf("RemoveOperation() failed: %v", err)
	}
	if err := db.RemoveOperation(ctx, id1); err != nil {
		t.Errorf("RemoveOperation() not idempotent: %v", err)
	}
	n, _ := db.PendingCount(ctx)
	if n != 2 {
		t.Errorf("PendingCount() = %d, want 2", n)
	}
}

func TestCreateLocal(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	stored, err := db.CreateLocal(ctx, &schema.Record{Name: "Azul", Players: 2})
	if err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	if !stored.IsTemp() || stored.Version != 1 || !stored.NeedsSync {
		t.Errorf("CreateLocal() = %+v", stored)
	}
	if got := opTypes(t, db, stored.ID); !equalTypes(got, []schema.OperationType{schema.OpCreate}) {
		t.Errorf("ops = %v, want [CREATE]", got)
	}

	if _, err := db.CreateLocal(ctx, stored); !errors.Is(err, ErrRecordExists) {
		t.Errorf("CreateLocal() with existing id error = %v, want ErrRecordExists", err)
	}
	if _, err := db.CreateLocal(ctx, &schema.Record{}); err == nil {
		t.Error("CreateLocal() with empty name expected error")
	}
	if n, _ := db.PendingCount(ctx); n != 1 {
		t.Errorf("failed creates left %d operations, want 1", n)
	}
}

func TestCoalescing(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, db *DB) string
		wantOps  []schema.OperationType
		wantRow  bool
		wantVers int
	}{
		{
			name: "update after create is folded into create",
			setup: func(t *testing.T, db *DB) string {
				rec, _ := db.CreateLocal(context.Background(), &schema.Record{Name: "Azul"})
				rec.Name = "Azul 2"
				if _, err := db.UpdateLocal(context.Background(), rec); err != nil {
					t.Fatalf("UpdateLocal() failed: %v", err)
				}
				return rec.ID
			},
			wantOps:  []schema.OperationType{schema.OpCreate},
			wantRow:  true,
			wantVers: 2,
		},
		{
			name: "repeated updates keep one entry",
			setup: func(t *testing.T, db *DB) string {
				ctx := context.Background()
				db.UpsertRecord(ctx, &schema.Record{ID: "srv_1", Name: "Brass", Version: 3})
				for i := 0; i < 3; i++ {
					if _, err := db.UpdateLocal(ctx, &schema.Record{ID: "srv_1", Name: fmt.Sprintf("Brass %d", i)}); err != nil {
						t.Fatalf("UpdateLocal() failed: %v", err)
					}
				}
				return "srv_1"
			},
			wantOps:  []schema.OperationType{schema.OpUpdate},
			wantRow:  true,
			wantVers: 6,
		},
		{
			name: "delete after create drops everything",
			setup: func(t *testing.T, db *DB) string {
				rec, _ := db.CreateLocal(context.Background(), &schema.Record{Name: "Azul"})
				if err := db.DeleteLocal(context.Background(), rec.ID); err != nil {
					t.Fatalf("DeleteLocal() failed: %v", err)
				}
				return rec.ID
			},
			wantOps: nil,
			wantRow: false,
		},
		{
			name: "delete after update replaces the update",
			setup: func(t *testing.T, db *DB) string {
				ctx := context.Background()
				db.UpsertRecord(ctx, &schema.Record{ID: "srv_2", Name: "Brass", Version: 1})
				db.UpdateLocal(ctx, &schema.Record{ID: "srv_2", Name: "Brass!"})
				if err := db.DeleteLocal(ctx, "srv_2"); err != nil {
					t.Fatalf("DeleteLocal() failed: %v", err)
				}
				return "srv_2"
			},
			wantOps: []schema.OperationType{schema.OpDelete},
			wantRow: false,
		},
		{
			name: "delete of synced record",
			setup: func(t *testing.T, db *DB) string {
				ctx := context.Background()
				db.UpsertRecord(ctx, &schema.Record{ID: "srv_3", Name: "Carcassonne", Version: 1})
				if err := db.DeleteLocal(ctx, "srv_3"); err != nil {
					t.Fatalf("DeleteLocal() failed: %v", err)
				}
				return "srv_3"
			},
			wantOps: []schema.OperationType{schema.OpDelete},
			wantRow: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testDB(t)
			id := tt.setup(t, db)

			if got := opTypes(t, db, id); !equalTypes(got, tt.wantOps) {
				t.Errorf("ops = %v, want %v", got, tt.wantOps)
			}

			rec, err := db.GetRecord(context.Background(), id)
			if tt.wantRow {
				if err != nil {
					t.Fatalf("GetRecord() failed: %v", err)
				}
				if !rec.NeedsSync {
					t.Error("NeedsSync = false, want true")
				}
				if rec.Version != tt.wantVers {
					t.Errorf("Version = %d, want %d", rec.Version, tt.wantVers)
				}
			} else if !errors.Is(err, ErrRecordNotFound) {
				t.Errorf("GetRecord() error = %v, want ErrRecordNotFound", err)
			}
		})
	}
}

func TestAppendOperation_NeverCoalesces(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	db.AppendOperation(ctx, "temp_x", schema.OpCreate)
	db.AppendOperation(ctx, "temp_x", schema.OpUpdate)
	db.AppendOperation(ctx, "temp_x", schema.OpDelete)

	want := []schema.OperationType{schema.OpCreate, schema.OpUpdate, schema.OpDelete}
	if got := opTypes(t, db, "temp_x"); !equalTypes(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}

func TestLocalMutations_MissingRecord(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	if _, err := db.UpdateLocal(ctx, &schema.Record{ID: "nope", Name: "x"}); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("UpdateLocal() error = %v, want ErrRecordNotFound", err)
	}
	if err := db.DeleteLocal(ctx, "nope"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("DeleteLocal() error = %v, want ErrRecordNotFound", err)
	}
	if n, _ := db.PendingCount(ctx); n != 0 {
		t.Errorf("PendingCount() = %d, want 0", n)
	}
}

func TestResolveWrite_ReplacesTemporaryRecord(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	local, _ := db.CreateLocal(ctx, &schema.Record{Name: "Azul"})
	ops, _ := db.ListPending(ctx)
	// A raw UPDATE queued behind the CREATE must follow the id change.
	db.AppendOperation(ctx, local.ID, schema.OpUpdate)

	res, err := db.ResolveWrite(ctx, Resolution{
		OpID:        ops[0].ID,
		LocalID:     local.ID,
		SentVersion: local.Version,
		Remote:      &schema.Record{ID: "srv_9", Name: "Azul", Version: 1},
	})
	if err != nil {
		t.Fatalf("ResolveWrite() failed: %v", err)
	}
	if res.CanonicalID != "srv_9" || res.Remapped != 1 || res.Requeued {
		t.Errorf("ResolveWrite() = %+v", res)
	}

	if _, err := db.GetRecord(ctx, local.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("temporary record still present: %v", err)
	}
	got, err := db.GetRecord(ctx, "srv_9")
	if err != nil {
		t.Fatalf("GetRecord(srv_9) failed: %v", err)
	}
	if !got.NeedsSync {
		t.Error("NeedsSync = false while an UPDATE is still queued")
	}
	if types := opTypes(t, db, "srv_9"); !equalTypes(types, []schema.OperationType{schema.OpUpdate}) {
		t.Errorf("ops for srv_9 = %v, want [UPDATE]", types)
	}
}

func TestResolveWrite_KeepsInFlightEdit(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	local, _ := db.CreateLocal(ctx, &schema.Record{Name: "Azul"})
	ops, _ := db.ListPending(ctx)
	sent := local.Version

	edited := local.Clone()
	edited.Name = "Azul: Summer Pavilion"
	if _, err := db.UpdateLocal(ctx, edited); err != nil {
		t.Fatalf("UpdateLocal() failed: %v", err)
	}

	res, err := db.ResolveWrite(ctx, Resolution{
		OpID:        ops[0].ID,
		LocalID:     local.ID,
		SentVersion: sent,
		Remote:      &schema.Record{ID: "srv_9", Name: "Azul", Version: 1},
	})
	if err != nil {
		t.Fatalf("ResolveWrite() failed: %v", err)
	}
	if !res.Requeued {
		t.Error("Requeued = false, want true")
	}

	got, _ := db.GetRecord(ctx, "srv_9")
	if got == nil || got.Name != "Azul: Summer Pavilion" || !got.NeedsSync {
		t.Errorf("record = %+v, want local edit kept and dirty", got)
	}
	if types := opTypes(t, db, "srv_9"); !equalTypes(types, []schema.OperationType{schema.OpUpdate}) {
		t.Errorf("ops for srv_9 = %v, want [UPDATE]", types)
	}
}

func TestResolveWrite_DeletedWhileInFlight(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	local, _ := db.CreateLocal(ctx, &schema.Record{Name: "Azul"})
	ops, _ := db.ListPending(ctx)
	if err := db.DeleteLocal(ctx, local.ID); err != nil {
		t.Fatalf("DeleteLocal() failed: %v", err)
	}

	res, err := db.ResolveWrite(ctx, Resolution{
		OpID:        ops[0].ID,
		LocalID:     local.ID,
		SentVersion: local.Version,
		Remote:      &schema.Record{ID: "srv_9", Name: "Azul", Version: 1},
	})
	if err != nil {
		t.Fatalf("ResolveWrite() failed: %v", err)
	}
	if !res.Requeued {
		t.Error("Requeued = false, want true")
	}
	if types := opTypes(t, db, "srv_9"); !equalTypes(types, []schema.OperationType{schema.OpDelete}) {
		t.Errorf("ops for srv_9 = %v, want [DELETE]", types)
	}
	if _, err := db.GetRecord(ctx, "srv_9"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("canonical record created for a deleted record: %v", err)
	}
}

func TestMergeRemote(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	written, err := db.MergeRemote(ctx, &schema.Record{ID: "srv_1", Name: "Brass", Version: 4})
	if err != nil || !written {
		t.Fatalf("MergeRemote() = %v, %v; want true, nil", written, err)
	}

	db.UpdateLocal(ctx, &schema.Record{ID: "srv_1", Name: "Brass: Birmingham"})
	written, err = db.MergeRemote(ctx, &schema.Record{ID: "srv_1", Name: "Brass (server)", Version: 9})
	if err != nil || written {
		t.Fatalf("MergeRemote() over dirty record = %v, %v; want false, nil", written, err)
	}
	got, _ := db.GetRecord(ctx, "srv_1")
	if got.Name != "Brass: Birmingham" {
		t.Errorf("dirty record overwritten: %q", got.Name)
	}

	db.UpsertRecord(ctx, &schema.Record{ID: "srv_2", Name: "Dominion", Version: 1})
	db.DeleteLocal(ctx, "srv_2")
	written, _ = db.MergeRemote(ctx, &schema.Record{ID: "srv_2", Name: "Dominion", Version: 1})
	if written {
		t.Error("MergeRemote() resurrected a record with a pending DELETE")
	}
}

func TestServerCopiesSkipLocalRules(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	// A free-form date and a lone latitude fail local validation but must
	// still land when the server is the source.
	lat := 10.0
	odd := &schema.Record{ID: "srv_1", Name: "Brass", Date: "May 2024", Latitude: &lat, Version: 1}
	if written, err := db.MergeRemote(ctx, odd); err != nil || !written {
		t.Fatalf("MergeRemote() = %v, %v; want true, nil", written, err)
	}

	if _, err := db.CreateLocal(ctx, &schema.Record{ID: "temp_1", Name: "Azul"}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}
	ops, err := db.OperationsForRecord(ctx, "temp_1")
	if err != nil || len(ops) != 1 {
		t.Fatalf("OperationsForRecord() = %v, %v", ops, err)
	}
	res, err := db.ResolveWrite(ctx, Resolution{
		OpID:        ops[0].ID,
		LocalID:     "temp_1",
		SentVersion: 1,
		Remote:      &schema.Record{ID: "srv_2", Name: "Azul", Date: "2024-05-01T00:00:00.000Z", Version: 1},
	})
	if err != nil {
		t.Fatalf("ResolveWrite() failed: %v", err)
	}
	if res.CanonicalID != "srv_2" {
		t.Errorf("CanonicalID = %q, want srv_2", res.CanonicalID)
	}
	got, err := db.GetRecord(ctx, "srv_2")
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got.Date != "2024-05-01T00:00:00.000Z" {
		t.Errorf("Date = %q, want the server timestamp", got.Date)
	}

	if err := db.UpsertRecord(ctx, odd); err == nil {
		t.Error("UpsertRecord() accepted a record failing local validation")
	}
}

// TestConcurrentMutations exercises the user path from many goroutines at
// once, mixing writers on shared and distinct records.
func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	if err := db.UpsertRecord(ctx, &schema.Record{ID: "shared", Name: "Shared", Version: 1}); err != nil {
		t.Fatalf("UpsertRecord() failed: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := db.UpdateLocal(ctx, &schema.Record{ID: "shared", Name: fmt.Sprintf("Shared %d", n)}); err != nil {
				errs <- err
			}
			if _, err := db.CreateLocal(ctx, &schema.Record{Name: fmt.Sprintf("Game %d", n)}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent mutation failed: %v", err)
	}

	shared, err := db.GetRecord(ctx, "shared")
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if shared.Version != workers+1 {
		t.Errorf("Version = %d, want %d (lost update)", shared.Version, workers+1)
	}
	if got := opTypes(t, db, "shared"); len(got) != 1 {
		t.Errorf("shared record has %d operations, want 1", len(got))
	}
	if n, _ := db.PendingCount(ctx); n != workers+1 {
		t.Errorf("PendingCount() = %d, want %d", n, workers+1)
	}
	if db.locks.size() != 0 {
		t.Errorf("lock table not drained: %d entries", db.locks.size())
	}
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	if _, err := db.CreateLocal(ctx, &schema.Record{Name: "Carcassonne", Players: 4}); err != nil {
		t.Fatalf("CreateLocal() failed: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.Backup(ctx, dest); err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}
	if err := db.Backup(ctx, dest); err == nil {
		t.Error("Backup() onto existing file expected error")
	}

	copyDB, err := Open(dest)
	if err != nil {
		t.Fatalf("Open(backup) failed: %v", err)
	}
	defer copyDB.Close()

	records, err := copyDB.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords() on backup failed: %v", err)
	}
	if len(records) != 1 || records[0].Name != "Carcassonne" {
		t.Errorf("backup records = %+v", records)
	}
	if n, _ := copyDB.PendingCount(ctx); n != 1 {
		t.Errorf("backup pending = %d, want 1", n)
	}
}
