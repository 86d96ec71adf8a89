// Package ledger persists processed mutations, the idempotency ledger.
package ledger

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

// Key is the primary key of a ledger entry together with its applied time,
// which is the order expired entries are scanned in.
type Key struct {
	AppliedAt  time.Time
	AccountID  string
	MutationID string
}

type Repository interface {
	// Get returns common.ErrorNotFound when the mutation was never applied.
	Get(ctx context.Context, accountID, mutationID string) (*models.ProcessedMutation, error)
	// Insert records e unless an entry with the same key exists; false means
	// another transaction got there first.
	Insert(ctx context.Context, e *models.ProcessedMutation) (bool, error)
	// ListExpired returns up to limit entries applied before the given
	// instant, strictly after key `after` in (appliedAt, accountId, mutationId) order.
	ListExpired(ctx context.Context, before time.Time, after *Key, limit int) ([]*models.ProcessedMutation, error)
	// DeleteExpired removes entries applied before the given instant up to and
	// including key `through`.
	DeleteExpired(ctx context.Context, before time.Time, through Key) (int64, error)
}

// KeyOf returns the scan key of e.
func KeyOf(e *models.ProcessedMutation) Key {
	return Key{AppliedAt: e.AppliedAt, AccountID: e.AccountID, MutationID: e.MutationID}
}
