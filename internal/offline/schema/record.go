package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// TempIDPrefix marks identifiers generated on the client before the remote
// service has assigned a canonical one.
const TempIDPrefix = "temp_"

// DateLayout is the layout of Record.Date.
const DateLayout = "2006-01-02"

// Record is a board-game entry synchronized between the local store and the
// remote service.
type Record struct {
	// ===== Identification =====
	ID string `json:"_id,omitempty"`

	// ===== Business fields =====
	Name           string `json:"name"`
	Players        int    `json:"nr_players"`
	Date           string `json:"date,omitempty"` // YYYY-MM-DD locally; the server may send a timestamp
	FamilyFriendly bool   `json:"family_friendly"`

	// ===== Location (optional, added in schema v3) =====
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// ===== Sync bookkeeping =====
	// Version is advisory; it is bumped on every local edit but never used
	// as an optimistic-concurrency guard.
	Version   int  `json:"version"`
	NeedsSync bool `json:"-"`
}

// NewTempID returns a fresh temporary identifier. ULIDs sort by creation
// time, so temporary ids keep insertion order across restarts.
func NewTempID() string {
	return TempIDPrefix + strings.ToLower(ulid.Make().String())
}

// IsTempID reports whether id was generated locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// IsTemp reports whether the record still carries a temporary id.
func (r *Record) IsTemp() bool {
	return IsTempID(r.ID)
}

// HasLocation reports whether both coordinates are set.
func (r *Record) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Validate checks if the Record has valid field values.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if r.Players < 0 {
		return fmt.Errorf("nr_players cannot be negative (got %d)", r.Players)
	}
	if r.Date != "" && !validDate(r.Date) {
		return fmt.Errorf("date must be YYYY-MM-DD or an RFC 3339 timestamp (got %q)", r.Date)
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return fmt.Errorf("latitude and longitude must be set together")
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return fmt.Errorf("latitude must be between -90 and 90 (got %v)", *r.Latitude)
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		return fmt.Errorf("longitude must be between -180 and 180 (got %v)", *r.Longitude)
	}
	if r.Version < 0 {
		return fmt.Errorf("version cannot be negative (got %d)", r.Version)
	}
	return nil
}

// validDate accepts the local layout and the timestamps the server echoes.
func validDate(s string) bool {
	if _, err := time.Parse(DateLayout, s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	dup := *r
	if r.Latitude != nil {
		lat := *r.Latitude
		dup.Latitude = &lat
	}
	if r.Longitude != nil {
		lon := *r.Longitude
		dup.Longitude = &lon
	}
	return &dup
}

// SameFields reports whether two records carry identical business fields,
// ignoring id and sync bookkeeping.
func (r *Record) SameFields(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Name == other.Name &&
		r.Players == other.Players &&
		r.Date == other.Date &&
		r.FamilyFriendly == other.FamilyFriendly &&
		floatPtrEqual(r.Latitude, other.Latitude) &&
		floatPtrEqual(r.Longitude, other.Longitude)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
