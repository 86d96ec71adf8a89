// Package conflict implements the last-write-wins policy applied to updates.
//
// The record-level rule compares a mutation's clientUpdatedAt with the
// record's server updatedAt. A mutation that loses that comparison may still
// write fields whose last edit is older than it (independent-field union), so
// edits to disjoint fields from different devices converge in any order.
package conflict

import (
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// Decision is the resolver's verdict for one mutation.
type Decision int

const (
	// Apply writes Resolution.Fields and stamps UpdatedAt.
	Apply Decision = iota
	// Discard keeps server state; the mutation still counts as applied.
	Discard
)

func (d Decision) String() string {
	if d == Apply {
		return "apply"
	}
	return "discard"
}

// Resolution is a decision, the winning subset of the payload and the
// updatedAt the record ends up with.
type Resolution struct {
	Decision  Decision
	Fields    models.Fields
	UpdatedAt time.Time
}

// Resolve decides what an update does to current.
//
//   - clientUpdatedAt > updatedAt: every payload field is written and
//     updatedAt becomes max(now, clientUpdatedAt).
//   - clientUpdatedAt == updatedAt: server wins, nothing is written, even for
//     fields the current state never saw. Two devices sending the same stamp
//     for disjoint fields therefore keep whichever arrived first.
//   - clientUpdatedAt < updatedAt: only fields whose field clock is older than
//     clientUpdatedAt are written; updatedAt moves past its current value.
//     No such field means Discard.
func Resolve(current *models.Record, patch models.Fields, clientUpdatedAt, now time.Time) Resolution {
	switch {
	case clientUpdatedAt.After(current.UpdatedAt):
		return Resolution{
			Decision:  Apply,
			Fields:    patch.Clone(),
			UpdatedAt: timex.Max(now, clientUpdatedAt),
		}
	case clientUpdatedAt.Equal(current.UpdatedAt):
		return discard(current)
	}

	won := models.Fields{}
	for k, v := range patch {
		if clientUpdatedAt.After(current.FieldClocks[k]) {
			won[k] = v
		}
	}
	if len(won) == 0 {
		return discard(current)
	}
	return Resolution{Decision: Apply, Fields: won, UpdatedAt: Advance(current.UpdatedAt, now)}
}

func discard(current *models.Record) Resolution {
	return Resolution{Decision: Discard, UpdatedAt: current.UpdatedAt}
}

// Advance returns the updatedAt for a change to a record currently stamped at
// serverUpdatedAt when no client timestamp decides it (deletes, partial wins).
// The result is strictly later so pulls using serverUpdatedAt as since see it.
func Advance(serverUpdatedAt, now time.Time) time.Time {
	floor := serverUpdatedAt.Add(timex.Precision)
	return timex.Max(now, floor)
}

// Merge returns a copy of base with every key of patch written over it.
// Explicit nulls in patch clear the field.
func Merge(base, patch models.Fields) models.Fields {
	out := base.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Stamp returns a copy of clocks with every key of patch set to at.
func Stamp(clocks map[string]time.Time, patch models.Fields, at time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(clocks)+len(patch))
	for k, v := range clocks {
		out[k] = v
	}
	for k := range patch {
		out[k] = at
	}
	return out
}
