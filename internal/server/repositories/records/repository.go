// Package records stores entity records. Every entity lives in its own table
// with the same shape, so one implementation serves all adapters.
package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

// Reference selects live records whose Field holds Value, optionally limited
// to records an ActiveRule considers active. Adapters use it for referential
// checks such as "client has open work orders".
type Reference struct {
	Field  string
	Value  string
	Active *models.ActiveRule
}

type Repository interface {
	// Get loads one record, tombstones included. forUpdate locks the row for
	// the rest of the surrounding transaction.
	Get(ctx context.Context, accountID, id string, forUpdate bool) (*models.Record, error)
	// Insert creates rec; false means the id already exists for the account.
	Insert(ctx context.Context, rec *models.Record) (bool, error)
	// Update overwrites rec if its stored updatedAt still equals prevUpdatedAt,
	// otherwise returns common.ErrVersionConflict.
	Update(ctx context.Context, rec *models.Record, prevUpdatedAt time.Time) error
	// Page returns up to q.Limit records in (updatedAt, id) order.
	Page(ctx context.Context, q models.PageQuery) ([]*models.Record, error)
	// Count returns how many records match q, ignoring q.After and q.Limit.
	Count(ctx context.Context, q models.PageQuery) (int64, error)
	CountReferences(ctx context.Context, accountID string, ref Reference) (int64, error)
	// PurgeTombstones hard-deletes records deleted before the given instant.
	PurgeTombstones(ctx context.Context, before time.Time) (int64, error)
}
