package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mschirtzinger/offsync/internal/offline/schema"
)

const recordColumns = `id, name, nr_players, date, family_friendly,
	latitude, longitude, version, needs_sync`

// GetRecord retrieves a single record by id.
// Returns ErrRecordNotFound if the record is not present.
func (db *DB) GetRecord(ctx context.Context, id string) (*schema.Record, error) {
	return getRecord(ctx, db.conn, id)
}

func getRecord(ctx context.Context, q querier, id string) (*schema.Record, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return rec, nil
}

// UpsertRecord validates and then inserts or overwrites a record. There is
// no merge logic: the last writer wins.
func (db *DB) UpsertRecord(ctx context.Context, rec *schema.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	unlock := db.locks.lock(rec.ID)
	defer unlock()
	return upsertRecord(ctx, db.conn, rec)
}

// upsertRecord writes rec as is. Field rules are enforced by the local
// mutation entry points only; copies returned by the server are stored
// whatever their shape.
func upsertRecord(ctx context.Context, q querier, rec *schema.Record) error {
	if rec.ID == "" {
		return errors.New("invalid record: id is required")
	}

	query := `
	INSERT INTO records (
		id, name, nr_players, date, family_friendly,
		latitude, longitude, version, needs_sync
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		nr_players = excluded.nr_players,
		date = excluded.date,
		family_friendly = excluded.family_friendly,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		version = excluded.version,
		needs_sync = excluded.needs_sync
	`

	_, err := q.ExecContext(ctx, query,
		rec.ID,
		rec.Name,
		rec.Players,
		stringToNull(rec.Date),
		boolToInt(rec.FamilyFriendly),
		floatToNull(rec.Latitude),
		floatToNull(rec.Longitude),
		rec.Version,
		boolToInt(rec.NeedsSync),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteRecord removes a record row without touching the operation log.
// Returns nil if the record doesn't exist (idempotent).
func (db *DB) DeleteRecord(ctx context.Context, id string) error {
	unlock := db.locks.lock(id)
	defer unlock()
	return deleteRecord(ctx, db.conn, id)
}

func deleteRecord(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

// ListRecords returns every record ordered by name.
func (db *DB) ListRecords(ctx context.Context) ([]*schema.Record, error) {
	return db.ListRecordsFilter(ctx, ListFilter{})
}

// ListFilter configures ListRecordsFilter.
type ListFilter struct {
	// NeedsSync filters by dirty flag (nil = all records)
	NeedsSync *bool
	// Limit restricts the number of results (0 = no limit)
	Limit int
	// Offset skips the first N results (for pagination)
	Offset int
}

// ListRecordsFilter retrieves records matching the given filter.
// Results are ordered by name (case-insensitive), then id.
func (db *DB) ListRecordsFilter(ctx context.Context, filter ListFilter) ([]*schema.Record, error) {
	var conditions []string
	var args []any

	if filter.NeedsSync != nil {
		conditions = append(conditions, "needs_sync = ?")
		args = append(args, boolToInt(*filter.NeedsSync))
	}

	query := `SELECT ` + recordColumns + ` FROM records`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name COLLATE NOCASE ASC, id ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*schema.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// CountRecords returns the number of records, and how many of them still
// need to be synchronized.
func (db *DB) CountRecords(ctx context.Context) (total, dirty int, err error) {
	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(needs_sync), 0) FROM records`,
	).Scan(&total, &dirty)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count records: %w", err)
	}
	return total, dirty, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*schema.Record, error) {
	var rec schema.Record
	var date sql.NullString
	var lat, lon sql.NullFloat64
	var family, needsSync int

	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Players,
		&date,
		&family,
		&lat,
		&lon,
		&rec.Version,
		&needsSync,
	)
	if err != nil {
		return nil, err
	}

	rec.Date = date.String
	rec.FamilyFriendly = family != 0
	rec.NeedsSync = needsSync != 0
	rec.Latitude = nullToFloat(lat)
	rec.Longitude = nullToFloat(lon)
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func stringToNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func floatToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullToFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
