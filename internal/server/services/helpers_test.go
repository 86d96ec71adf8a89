package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/adapters"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/testutil"
	"github.com/stretchr/testify/require"
)

const acc = "acc-1"

type harness struct {
	t     *testing.T
	svc   *SyncService
	rm    repomanager.RepositoryManager
	clock *testutil.StubClock
	cfg   *config.Config
	seq   int
}

func newHarness(t *testing.T, tweak ...func(*config.Config)) *harness {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PullSafetyWindow = 0
	for _, fn := range tweak {
		fn(cfg)
	}
	h := &harness{
		t:     t,
		rm:    repomanager.NewMemoryRepositoryManager(),
		clock: testutil.FixedClock(),
		cfg:   cfg,
	}
	h.svc = NewSyncService(h.rm, adapters.Default(), cfg, h.clock, logging.Nop{})
	return h
}

// wire builds a mutation stamped at the current stub time.
func (h *harness) wire(action models.Action, record map[string]any) models.WireMutation {
	h.seq++
	return models.WireMutation{
		MutationID:      fmt.Sprintf("m-%d", h.seq),
		Action:          string(action),
		Record:          record,
		ClientUpdatedAt: models.FormatTime(h.clock.Now()),
	}
}

func (h *harness) push(entity string, ms ...models.WireMutation) []models.MutationResult {
	h.t.Helper()
	res, err := h.svc.Push(context.Background(), acc, entity, ms)
	require.NoError(h.t, err)
	require.Len(h.t, res, len(ms))
	return res
}

func (h *harness) mustApply(entity string, action models.Action, record map[string]any) map[string]any {
	h.t.Helper()
	h.clock.Advance(time.Second)
	res := h.push(entity, h.wire(action, record))
	require.Equal(h.t, models.StatusApplied, res[0].Status, res[0].Error)
	return res[0].Record
}

func (h *harness) pull(entity string, p models.PullParams) *models.PullResult {
	h.t.Helper()
	res, err := h.svc.Pull(context.Background(), acc, entity, p)
	require.NoError(h.t, err)
	return res
}

// pullAll walks every page and returns the items in order.
func (h *harness) pullAll(entity string, since *time.Time, limit int) ([]map[string]any, time.Time) {
	h.t.Helper()
	var (
		items  []map[string]any
		cursor string
		first  time.Time
	)
	for page := 0; ; page++ {
		res := h.pull(entity, models.PullParams{Since: since, Cursor: cursor, Limit: limit})
		if page == 0 {
			first = res.ServerTime
		}
		items = append(items, res.Items...)
		if !res.HasMore {
			return items, first
		}
		require.NotNil(h.t, res.NextCursor)
		cursor = *res.NextCursor
	}
}

func ids(items []map[string]any) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it["id"].(string)
	}
	return out
}
