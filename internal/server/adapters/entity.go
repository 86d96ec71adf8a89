package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/conflict"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"github.com/google/uuid"
)

// newID is a seam for server-assigned record ids.
var newID = uuid.NewString

// SchemaAdapter implements Adapter for any entity described by a Schema.
type SchemaAdapter struct {
	schema *Schema
	table  string
	reg    *Registry
}

func (a *SchemaAdapter) Entity() string                 { return a.schema.Entity }
func (a *SchemaAdapter) Table() string                  { return a.table }
func (a *SchemaAdapter) ActiveRule() *models.ActiveRule { return a.schema.Active }

func (a *SchemaAdapter) store(repos repomanager.Repositories) records.Repository {
	return repos.Records(a.table)
}

func (a *SchemaAdapter) FetchPage(ctx context.Context, repos repomanager.Repositories, q models.PageQuery) ([]*models.Record, error) {
	return a.store(repos).Page(ctx, q)
}

func (a *SchemaAdapter) Count(ctx context.Context, repos repomanager.Repositories, q models.PageQuery) (int64, error) {
	return a.store(repos).Count(ctx, q)
}

func (a *SchemaAdapter) Get(ctx context.Context, repos repomanager.Repositories, accountID, id string) (*models.Record, error) {
	return a.store(repos).Get(ctx, accountID, id, false)
}

func (a *SchemaAdapter) Purge(ctx context.Context, repos repomanager.Repositories, before time.Time) (int64, error) {
	return a.store(repos).PurgeTombstones(ctx, before)
}

// ToWire flattens a record into the object devices see.
func (a *SchemaAdapter) ToWire(rec *models.Record) map[string]any {
	out := make(map[string]any, len(rec.Fields)+4)
	for k, v := range rec.Fields {
		out[k] = v
	}
	out[models.KeyID] = rec.ID
	out[models.KeyCreatedAt] = models.FormatTime(rec.CreatedAt)
	out[models.KeyUpdatedAt] = models.FormatTime(rec.UpdatedAt)
	if rec.DeletedAt != nil {
		out[models.KeyDeletedAt] = models.FormatTime(*rec.DeletedAt)
	} else {
		out[models.KeyDeletedAt] = nil
	}
	return out
}

func (a *SchemaAdapter) ApplyMutation(ctx context.Context, repos repomanager.Repositories, accountID string, m models.Mutation, clock timex.Clock) (Applied, error) {
	switch m.Action {
	case models.ActionCreate:
		return a.create(ctx, repos, accountID, m, clock)
	case models.ActionUpdate:
		if err := a.schema.validate(m.Fields, false); err != nil {
			return Applied{}, err
		}
		return a.update(ctx, repos, accountID, m, clock)
	case models.ActionUpdateStatus:
		if err := a.schema.validateStatus(m.Fields); err != nil {
			return Applied{}, err
		}
		return a.update(ctx, repos, accountID, m, clock)
	case models.ActionDelete:
		return a.delete(ctx, repos, accountID, m, clock)
	}
	return Applied{}, common.Invalid("action", "unknown action %q", m.Action)
}

// create is create-or-no-op: an id that already exists, tombstone included,
// leaves the stored record untouched.
func (a *SchemaAdapter) create(ctx context.Context, repos repomanager.Repositories, accountID string, m models.Mutation, clock timex.Clock) (Applied, error) {
	store := a.store(repos)

	id := m.RecordID
	if id != "" {
		cur, err := store.Get(ctx, accountID, id, true)
		if err == nil {
			return Applied{Outcome: models.OutcomeNoop, Record: cur}, nil
		}
		if !common.IsRejection(err) {
			return Applied{}, err
		}
	} else {
		id = newID()
	}

	if err := a.schema.validate(m.Fields, true); err != nil {
		return Applied{}, err
	}
	if err := a.schema.checkRefs(ctx, repos, a.reg, accountID, m.Fields); err != nil {
		return Applied{}, err
	}

	now := clock.Now()
	rec := &models.Record{
		ID:          id,
		AccountID:   accountID,
		Fields:      m.Fields.Clone(),
		FieldClocks: conflict.Stamp(nil, m.Fields, m.ClientUpdatedAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := store.Insert(ctx, rec)
	if err != nil {
		return Applied{}, err
	}
	if !created {
		// A concurrent create of the same id committed between our read and
		// insert. Replaying the transaction turns this into a no-op.
		return Applied{}, common.ErrVersionConflict
	}
	return Applied{Outcome: models.OutcomeApplied, Record: rec}, nil
}

func (a *SchemaAdapter) update(ctx context.Context, repos repomanager.Repositories, accountID string, m models.Mutation, clock timex.Clock) (Applied, error) {
	store := a.store(repos)

	cur, err := store.Get(ctx, accountID, m.RecordID, true)
	if err != nil {
		return Applied{}, err
	}
	if cur.IsDeleted() {
		return Applied{}, fmt.Errorf("%s %q was deleted: %w", a.schema.Entity, cur.ID, common.ErrorNotFound)
	}

	res := conflict.Resolve(cur, m.Fields, m.ClientUpdatedAt, clock.Now())
	if res.Decision == conflict.Discard {
		return Applied{Outcome: models.OutcomeDiscarded, Record: cur}, nil
	}
	if err := a.schema.checkRefs(ctx, repos, a.reg, accountID, res.Fields); err != nil {
		return Applied{}, err
	}

	next := cur.Clone()
	next.Fields = conflict.Merge(cur.Fields, res.Fields)
	next.FieldClocks = conflict.Stamp(cur.FieldClocks, res.Fields, m.ClientUpdatedAt)
	next.UpdatedAt = res.UpdatedAt
	if err := store.Update(ctx, next, cur.UpdatedAt); err != nil {
		return Applied{}, err
	}
	return Applied{Outcome: models.OutcomeApplied, Record: next}, nil
}

// delete writes a tombstone. Deletes are not subject to last-write-wins;
// deleting a tombstone is a no-op.
func (a *SchemaAdapter) delete(ctx context.Context, repos repomanager.Repositories, accountID string, m models.Mutation, clock timex.Clock) (Applied, error) {
	store := a.store(repos)

	cur, err := store.Get(ctx, accountID, m.RecordID, true)
	if err != nil {
		return Applied{}, err
	}
	if cur.IsDeleted() {
		return Applied{Outcome: models.OutcomeNoop, Record: cur}, nil
	}

	if a.schema.CanDelete != nil {
		if err := a.schema.CanDelete(cur); err != nil {
			return Applied{}, err
		}
	}
	for _, g := range a.schema.Guards {
		if err := a.checkGuard(ctx, repos, accountID, cur.ID, g); err != nil {
			return Applied{}, err
		}
	}

	at := conflict.Advance(cur.UpdatedAt, clock.Now())
	next := cur.Clone()
	next.UpdatedAt = at
	next.DeletedAt = &at
	if err := store.Update(ctx, next, cur.UpdatedAt); err != nil {
		return Applied{}, err
	}
	return Applied{Outcome: models.OutcomeApplied, Record: next}, nil
}

func (a *SchemaAdapter) checkGuard(ctx context.Context, repos repomanager.Repositories, accountID, id string, g DeleteGuard) error {
	dep, err := a.reg.Get(g.Entity)
	if err != nil {
		return fmt.Errorf("guard on %s: %w", a.schema.Entity, err)
	}
	n, err := repos.Records(dep.Table()).CountReferences(ctx, accountID, records.Reference{
		Field:  g.Field,
		Value:  id,
		Active: g.Active,
	})
	if err != nil {
		return err
	}
	if n > 0 {
		return common.Invalid("", "cannot delete %s %q: %d %s", a.schema.Entity, id, n, g.Reason)
	}
	return nil
}
