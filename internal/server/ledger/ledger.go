// Package ledger implements exactly-once mutation processing on top of the
// processed_mutations table, and the maintenance that keeps it bounded.
package ledger

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
)

// ErrDuplicate means another transaction recorded the same mutation first.
// The caller must roll back and answer with the stored result.
var ErrDuplicate = errors.New("mutation already processed")

// Lookup returns the ledger entry of (accountID, mutationID), or nil if the
// mutation has not been applied.
func Lookup(ctx context.Context, repos repomanager.Repositories, accountID, mutationID string) (*models.ProcessedMutation, error) {
	e, err := repos.Ledger().Get(ctx, accountID, mutationID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Record stores e within the caller's transaction. It returns ErrDuplicate
// when the key already exists.
func Record(ctx context.Context, repos repomanager.Repositories, e *models.ProcessedMutation) error {
	inserted, err := repos.Ledger().Insert(ctx, e)
	if err != nil {
		return err
	}
	if !inserted {
		return ErrDuplicate
	}
	return nil
}
