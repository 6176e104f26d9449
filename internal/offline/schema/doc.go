// Package schema defines the records and pending operations handled by the
// offline sync engine.
//
// # Records
//
// A Record is a board-game entry owned by the remote service. Records created
// while offline carry a temporary identifier until the server assigns a
// canonical one:
//
//	rec := &schema.Record{Name: "Catan", Players: 4}
//	rec.ID = schema.NewTempID() // temp_01J9Z...
//	schema.IsTempID(rec.ID)    // true
//
// The wire format uses the remote API's field names:
//
//	{
//	  "_id": "srv_9",
//	  "name": "Catan",
//	  "nr_players": 4,
//	  "date": "2024-05-01",
//	  "family_friendly": true,
//	  "version": 3,
//	  "latitude": 46.77,
//	  "longitude": 23.59
//	}
//
// NeedsSync is local state and is never serialized.
//
// # Pending operations
//
// A PendingOperation is one not-yet-confirmed intent (CREATE, UPDATE or
// DELETE) against a record id. Operations are replayed in insertion order
// and removed only once applied remotely or found to be moot.
package schema
