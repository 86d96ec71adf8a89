package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/adapters"
	"github.com/dmitrijs2005/fieldsync/internal/server/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
)

// Push applies mutations one by one in submission order and returns one
// result per input, in the same order.
//
// A mutation already in the ledger returns its stored result untouched.
// Validation and missing-record failures reject that mutation only. Any other
// failure stops the batch: mutations applied before it stay committed and
// the error is returned together with their results.
func (s *SyncService) Push(ctx context.Context, accountID, entity string, mutations []models.WireMutation) ([]models.MutationResult, error) {
	adapter, err := s.registry.Get(entity)
	if err != nil {
		return nil, err
	}
	if len(mutations) > common.MaxPushBatch {
		return nil, common.Invalid("mutations", "at most %d per push, got %d", common.MaxPushBatch, len(mutations))
	}

	results := make([]models.MutationResult, 0, len(mutations))
	rejected := 0
	for _, w := range mutations {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := s.pushOne(ctx, accountID, adapter, w)
		if err != nil {
			s.logger.Error(ctx, "push aborted",
				"account", accountID, "entity", entity, "mutation", w.MutationID, "done", len(results), "error", err)
			return results, err
		}
		if res.Status == models.StatusRejected {
			rejected++
		}
		s.logger.Debug(ctx, "mutation processed", "entity", entity, "result", res.String())
		results = append(results, res)
	}

	s.logger.Info(ctx, "push processed",
		"account", accountID, "entity", entity, "applied", len(results)-rejected, "rejected", rejected)
	return results, nil
}

func (s *SyncService) pushOne(ctx context.Context, accountID string, adapter adapters.Adapter, w models.WireMutation) (models.MutationResult, error) {
	m, err := w.Parse()
	if err != nil {
		return models.Rejected(w.MutationID, err), nil
	}

	seen, err := ledger.Lookup(ctx, s.repomanager.Repositories(), accountID, m.MutationID)
	if err != nil {
		return models.MutationResult{}, err
	}
	if seen != nil {
		return seen.Result, nil
	}

	// Once started, a mutation runs to commit or rollback even if the caller
	// goes away.
	txCtx := context.WithoutCancel(ctx)

	var result models.MutationResult
	err = s.repomanager.WithTx(txCtx, func(ctx context.Context, repos repomanager.Repositories) error {
		seen, err := ledger.Lookup(ctx, repos, accountID, m.MutationID)
		if err != nil {
			return err
		}
		if seen != nil {
			result = seen.Result
			return nil
		}

		applied, err := adapter.ApplyMutation(ctx, repos, accountID, m, s.clock)
		if err != nil {
			return err
		}

		result = models.MutationResult{
			MutationID: m.MutationID,
			Status:     models.StatusApplied,
			Record:     adapter.ToWire(applied.Record),
		}
		return ledger.Record(ctx, repos, &models.ProcessedMutation{
			AccountID:  accountID,
			MutationID: m.MutationID,
			Entity:     adapter.Entity(),
			RecordID:   applied.Record.ID,
			Outcome:    applied.Outcome,
			Result:     result,
			AppliedAt:  s.clock.Now(),
		})
	})

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, ledger.ErrDuplicate):
		winner, lerr := ledger.Lookup(txCtx, s.repomanager.Repositories(), accountID, m.MutationID)
		if lerr != nil {
			return models.MutationResult{}, lerr
		}
		if winner == nil {
			return models.MutationResult{}, fmt.Errorf("%w: ledger entry %s vanished", common.ErrorInternal, m.MutationID)
		}
		return winner.Result, nil
	case common.IsRejection(err):
		return models.Rejected(m.MutationID, err), nil
	}
	return models.MutationResult{}, err
}
