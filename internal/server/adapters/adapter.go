// Package adapters plugs concrete entity types into the sync engine. An
// adapter knows its table, validates payloads, enforces references and delete
// guards, and turns stored records into wire objects.
package adapters

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// Applied is what ApplyMutation did and the record state to report back.
type Applied struct {
	Outcome models.Outcome
	Record  *models.Record
}

// Adapter is the per-entity contract of the sync engine. Every method takes
// the Repositories it must use so the caller decides the transaction scope.
type Adapter interface {
	Entity() string
	Table() string
	// ActiveRule is the entity-specific part of the active_only scope.
	ActiveRule() *models.ActiveRule

	FetchPage(ctx context.Context, repos repomanager.Repositories, q models.PageQuery) ([]*models.Record, error)
	Count(ctx context.Context, repos repomanager.Repositories, q models.PageQuery) (int64, error)
	Get(ctx context.Context, repos repomanager.Repositories, accountID, id string) (*models.Record, error)
	// ApplyMutation validates m and writes its effect through repos. It must
	// run inside a transaction. The server time is read from clock only once
	// the target row is locked. Validation and missing-record failures match
	// common.ErrorValidation and common.ErrorNotFound.
	ApplyMutation(ctx context.Context, repos repomanager.Repositories, accountID string, m models.Mutation, clock timex.Clock) (Applied, error)
	ToWire(rec *models.Record) map[string]any
	// Purge hard-deletes tombstones older than before.
	Purge(ctx context.Context, repos repomanager.Repositories, before time.Time) (int64, error)
}
