package schema

import (
	"fmt"
	"time"
)

// OperationType is the kind of change a PendingOperation propagates.
type OperationType string

const (
	OpCreate OperationType = "CREATE"
	OpUpdate OperationType = "UPDATE"
	OpDelete OperationType = "DELETE"
)

// IsValid reports whether t is one of the known operation types.
func (t OperationType) IsValid() bool {
	switch t {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// ParseOperationType converts a stored string back to an OperationType.
func ParseOperationType(s string) (OperationType, error) {
	t := OperationType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown operation type %q", s)
	}
	return t, nil
}

// PendingOperation is a durable intent to propagate one record change.
type PendingOperation struct {
	ID        int64
	RecordID  string
	Type      OperationType
	Timestamp time.Time

	// Attempts and LastError are diagnostics only; they never affect
	// ordering or removal.
	Attempts  int
	LastError string
}

// String returns a short human-readable form, e.g. "#12 UPDATE rec_5".
func (op *PendingOperation) String() string {
	return fmt.Sprintf("#%d %s %s", op.ID, op.Type, op.RecordID)
}
