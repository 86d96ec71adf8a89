package models

import "time"

// Outcome records what an applied mutation actually did.
type Outcome string

const (
	// OutcomeApplied: fields were written.
	OutcomeApplied Outcome = "applied"
	// OutcomeDiscarded: lost last-write-wins, server state kept.
	OutcomeDiscarded Outcome = "discarded"
	// OutcomeNoop: nothing to do (create of an existing id, re-delete).
	OutcomeNoop Outcome = "noop"
)

// ProcessedMutation is an idempotency ledger entry. It exists exactly once
// per (AccountID, MutationID).
type ProcessedMutation struct {
	AccountID  string
	MutationID string
	Entity     string
	RecordID   string
	Outcome    Outcome
	Result     MutationResult
	AppliedAt  time.Time
}
