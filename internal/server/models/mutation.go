package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// Action is what a mutation asks the server to do.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionUpdateStatus Action = "update_status"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionUpdateStatus:
		return true
	}
	return false
}

// MaxMutationIDLength bounds client-chosen idempotency keys.
const MaxMutationIDLength = 128

// WireMutation is a mutation exactly as a device submitted it.
type WireMutation struct {
	MutationID      string         `json:"mutationId"`
	Action          string         `json:"action"`
	Record          map[string]any `json:"record"`
	ClientUpdatedAt string         `json:"clientUpdatedAt"`
}

// Mutation is a validated, immutable client intent.
type Mutation struct {
	MutationID      string
	Action          Action
	RecordID        string
	Fields          Fields
	ClientUpdatedAt time.Time
}

// Parse validates the envelope of a submitted mutation. Entity-specific field
// rules are checked later by the adapter.
func (w WireMutation) Parse() (Mutation, error) {
	var m Mutation

	if w.MutationID == "" {
		return m, common.Invalid("mutationId", "is required")
	}
	if len(w.MutationID) > MaxMutationIDLength {
		return m, common.Invalid("mutationId", "longer than %d characters", MaxMutationIDLength)
	}
	m.MutationID = w.MutationID

	m.Action = Action(w.Action)
	if !m.Action.Valid() {
		return m, common.Invalid("action", "unknown action %q", w.Action)
	}

	if w.Record == nil {
		return m, common.Invalid("record", "is required")
	}

	if w.ClientUpdatedAt == "" {
		return m, common.Invalid("clientUpdatedAt", "is required")
	}
	ts, err := ParseTime(w.ClientUpdatedAt)
	if err != nil {
		return m, common.Invalid("clientUpdatedAt", "not an ISO-8601 timestamp: %q", w.ClientUpdatedAt)
	}
	m.ClientUpdatedAt = ts

	if raw, ok := w.Record[KeyID]; ok && raw != nil {
		id, isString := raw.(string)
		if !isString {
			return m, common.Invalid("record.id", "must be a string")
		}
		if len(id) > common.MaxRecordIDLength {
			return m, common.Invalid("record.id", "longer than %d bytes", common.MaxRecordIDLength)
		}
		m.RecordID = id
	}
	if m.RecordID == "" && m.Action != ActionCreate {
		return m, common.Invalid("record.id", "is required for %s", m.Action)
	}

	m.Fields = make(Fields, len(w.Record))
	for k, v := range w.Record {
		if IsReserved(k) {
			continue
		}
		m.Fields[k] = v
	}

	return m, nil
}

// Status is the per-mutation answer returned to the device.
type Status string

const (
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
)

// MutationResult is one entry of a push response.
type MutationResult struct {
	MutationID string         `json:"mutationId"`
	Status     Status         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Record     map[string]any `json:"record,omitempty"`
}

// Rejected builds a rejected result for err.
func Rejected(mutationID string, err error) MutationResult {
	return MutationResult{MutationID: mutationID, Status: StatusRejected, Error: err.Error()}
}

func (r MutationResult) String() string {
	if r.Status == StatusRejected {
		return fmt.Sprintf("%s: rejected (%s)", r.MutationID, r.Error)
	}
	return fmt.Sprintf("%s: %s", r.MutationID, r.Status)
}
