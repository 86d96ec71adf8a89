package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

// Pull returns one page of entity records changed after params.Since, in
// (updatedAt, id) order, resuming after params.Cursor.
//
// A full sync (Since == nil) returns live records only; a delta includes
// tombstones so devices learn about deletions. ServerTime is taken before
// any query and lags the clock by the safety window, so the next delta using
// it as since cannot skip a write that was still committing.
func (s *SyncService) Pull(ctx context.Context, accountID, entity string, p models.PullParams) (*models.PullResult, error) {
	adapter, err := s.registry.Get(entity)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	serverTime := now.Add(-s.pullSafetyWindow)

	limit := p.Limit
	if limit == 0 {
		limit = common.DefaultPullLimit
	}
	if limit < 1 || limit > common.MaxPullLimit {
		return nil, common.Invalid("limit", "must be between 1 and %d, got %d", common.MaxPullLimit, limit)
	}

	if p.Since != nil && p.Since.Before(now.Add(-s.tombstoneRetention)) {
		return nil, fmt.Errorf("%w: since is older than the tombstone retention", common.ErrInvalidCursor)
	}

	repos := s.repomanager.Repositories()
	q := models.PageQuery{
		AccountID: accountID,
		Since:     p.Since,
		LiveOnly:  p.Since == nil,
	}

	switch p.Scope {
	case "", models.ScopeAll:
	case models.ScopeRecent:
		from := now.Add(-s.recentWindow)
		q.UpdatedFrom = &from
	case models.ScopeActiveOnly:
		q.LiveOnly = true
		q.Active = adapter.ActiveRule()
	default:
		return nil, common.Invalid("scope", "unknown scope %q", p.Scope)
	}

	total, err := adapter.Count(ctx, repos, q)
	if err != nil {
		return nil, err
	}

	if p.Cursor != "" {
		pos, err := s.cursors.Decode(p.Cursor)
		if err != nil {
			return nil, err
		}
		if _, err := adapter.Get(ctx, repos, accountID, pos.ID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, fmt.Errorf("%w: record behind cursor was purged", common.ErrInvalidCursor)
			}
			return nil, err
		}
		q.After = &pos
	}

	q.Limit = limit + 1
	recs, err := adapter.FetchPage(ctx, repos, q)
	if err != nil {
		return nil, err
	}

	res := &models.PullResult{
		ServerTime: serverTime,
		Total:      total,
		HasMore:    len(recs) > limit,
	}
	if res.HasMore {
		recs = recs[:limit]
		next := s.cursors.Encode(recs[len(recs)-1].Position())
		res.NextCursor = &next
	}

	res.Items = make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		res.Items = append(res.Items, adapter.ToWire(rec))
	}

	s.logger.Debug(ctx, "pull served",
		"account", accountID, "entity", entity, "items", len(res.Items), "has_more", res.HasMore)
	return res, nil
}
