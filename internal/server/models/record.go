// Package models defines the server-side sync types: records as stored,
// mutations as submitted by devices, ledger entries and pull parameters.
package models

import (
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// Fields holds the mutable business fields of a record, keyed by their wire name.
type Fields map[string]any

// Clone returns a shallow copy of the map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Wire names owned by the server. They never appear inside Record.Fields.
const (
	KeyID        = "id"
	KeyAccountID = "accountId"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
	KeyDeletedAt = "deletedAt"
)

// IsReserved reports whether key is a server-owned wire name.
func IsReserved(key string) bool {
	switch key {
	case KeyID, KeyAccountID, KeyCreatedAt, KeyUpdatedAt, KeyDeletedAt:
		return true
	}
	return false
}

// Record is one entity instance owned by an account.
//
// UpdatedAt is assigned by the server only and never decreases over the
// record's lifetime. A non-nil DeletedAt marks a tombstone.
//
// FieldClocks keeps, per field, the clientUpdatedAt of the mutation that last
// wrote it. It lets an edit that lost the record-level race still land on
// fields nobody touched since. Clocks are internal and never sent to devices.
type Record struct {
	ID          string
	AccountID   string
	Fields      Fields
	FieldClocks map[string]time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

func (r *Record) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Position is the record's place in pull order.
func (r *Record) Position() Position {
	return Position{UpdatedAt: r.UpdatedAt, ID: r.ID}
}

// Clone copies the record so callers can mutate Fields without aliasing.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = r.Fields.Clone()
	c.FieldClocks = make(map[string]time.Time, len(r.FieldClocks))
	for k, v := range r.FieldClocks {
		c.FieldClocks[k] = v
	}
	if r.DeletedAt != nil {
		d := *r.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

// FormatTime renders a timestamp the way every API response does.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime accepts RFC 3339 timestamps with optional fractional seconds and
// normalizes them to storage precision.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return timex.Normalize(t), nil
}
