package client

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"github.com/google/uuid"
)

var newMutationID = uuid.NewString

// Replica is a device's local copy of one entity plus the outbox of edits
// made since the last successful push. Edits are visible locally at once and
// reach the server on the next Sync. Safe for concurrent use.
type Replica struct {
	mu       sync.Mutex
	client   Client
	entity   string
	pageSize int
	clock    timex.Clock

	server   map[string]map[string]any
	outbox   []models.WireMutation
	lastSync string
}

// SyncReport summarizes one Sync round.
type SyncReport struct {
	Pushed     int
	Rejected   []models.MutationResult
	Pulled     int
	FullResync bool
}

func NewReplica(c Client, entity string, pageSize int, clock timex.Clock) *Replica {
	return &Replica{
		client:   c,
		entity:   entity,
		pageSize: pageSize,
		clock:    clock,
		server:   map[string]map[string]any{},
	}
}

func (r *Replica) enqueue(action models.Action, record map[string]any) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := models.WireMutation{
		MutationID:      newMutationID(),
		Action:          string(action),
		Record:          maps.Clone(record),
		ClientUpdatedAt: models.FormatTime(r.clock.Now()),
	}
	r.outbox = append(r.outbox, m)
	return m.MutationID
}

// Create queues a new record and returns its client-chosen id.
func (r *Replica) Create(fields map[string]any) string {
	id := uuid.NewString()
	rec := maps.Clone(fields)
	if rec == nil {
		rec = map[string]any{}
	}
	rec[models.KeyID] = id
	r.enqueue(models.ActionCreate, rec)
	return id
}

// Update queues a partial update of id.
func (r *Replica) Update(id string, fields map[string]any) {
	rec := maps.Clone(fields)
	if rec == nil {
		rec = map[string]any{}
	}
	rec[models.KeyID] = id
	r.enqueue(models.ActionUpdate, rec)
}

// UpdateStatus queues a status change; extra carries optional companion
// fields such as an invoice's paidAt.
func (r *Replica) UpdateStatus(id, status string, extra map[string]any) {
	rec := maps.Clone(extra)
	if rec == nil {
		rec = map[string]any{}
	}
	rec[models.KeyID] = id
	rec["status"] = status
	r.enqueue(models.ActionUpdateStatus, rec)
}

// Delete queues a deletion of id.
func (r *Replica) Delete(id string) {
	r.enqueue(models.ActionDelete, map[string]any{models.KeyID: id})
}

// Pending returns the number of edits not yet acknowledged by the server.
func (r *Replica) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outbox)
}

// LastSync returns the since the next delta pull will use; "" before the
// first successful pull.
func (r *Replica) LastSync() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSync
}

// Records returns the local view: server state with queued edits applied.
func (r *Replica) Records() map[string]map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := make(map[string]map[string]any, len(r.server))
	for id, rec := range r.server {
		view[id] = maps.Clone(rec)
	}
	for _, m := range r.outbox {
		id, _ := m.Record[models.KeyID].(string)
		switch models.Action(m.Action) {
		case models.ActionCreate:
			if _, ok := view[id]; !ok {
				view[id] = maps.Clone(m.Record)
			}
		case models.ActionUpdate, models.ActionUpdateStatus:
			if cur, ok := view[id]; ok {
				maps.Copy(cur, m.Record)
			}
		case models.ActionDelete:
			delete(view, id)
		}
	}
	return view
}

// IDs returns the ids of the local view in sorted order.
func (r *Replica) IDs() []string {
	view := r.Records()
	ids := make([]string, 0, len(view))
	for id := range view {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sync pushes the outbox, then pulls everything changed since the last sync.
// A push failure keeps the outbox for the next attempt; mutation ids are
// stable so a retry after a lost response is answered from the server's
// ledger. An invalid cursor or a since older than the server keeps
// tombstones for triggers a full resync.
func (r *Replica) Sync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}

	if err := r.push(ctx, report); err != nil {
		return report, err
	}

	r.mu.Lock()
	since := r.lastSync
	r.mu.Unlock()

	snap, err := r.client.PullAll(ctx, r.entity, since, r.pageSize)
	if errors.Is(err, common.ErrInvalidCursor) && since != "" {
		report.FullResync = true
		since = ""
		snap, err = r.client.PullAll(ctx, r.entity, since, r.pageSize)
	}
	if err != nil {
		return report, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if since == "" {
		r.server = map[string]map[string]any{}
	}
	for _, item := range snap.Items {
		r.store(item)
	}
	r.lastSync = snap.ServerTime
	report.Pulled = len(snap.Items)

	return report, nil
}

func (r *Replica) push(ctx context.Context, report *SyncReport) error {
	for {
		r.mu.Lock()
		n := min(len(r.outbox), common.MaxPushBatch)
		batch := append([]models.WireMutation(nil), r.outbox[:n]...)
		r.mu.Unlock()

		if len(batch) == 0 {
			return nil
		}

		resp, err := r.client.Push(ctx, r.entity, batch)
		if err != nil {
			return err
		}

		r.mu.Lock()
		r.outbox = r.outbox[n:]
		for _, res := range resp.Results {
			if res.Status == models.StatusRejected {
				report.Rejected = append(report.Rejected, res)
				continue
			}
			report.Pushed++
			if res.Record != nil {
				r.store(res.Record)
			}
		}
		r.mu.Unlock()
	}
}

// store applies one server record to the local copy; r.mu must be held.
func (r *Replica) store(item map[string]any) {
	id, _ := item[models.KeyID].(string)
	if id == "" {
		return
	}
	if item[models.KeyDeletedAt] != nil {
		delete(r.server, id)
		return
	}
	r.server[id] = maps.Clone(item)
}
