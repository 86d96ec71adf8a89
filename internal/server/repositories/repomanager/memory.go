package repomanager

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/records"
)

type recordKey struct{ account, id string }

type ledgerKey struct{ account, mutation string }

// MemoryRepositoryManager keeps every table in process memory. Transactions
// are serialized by one lock and stage their writes until commit, so a failed
// transaction leaves no trace. Repositories handed to a WithTx callback must
// be the only ones it uses; calling Repositories() inside it deadlocks.
type MemoryRepositoryManager struct {
	mu     sync.RWMutex
	tables map[string]map[recordKey]*models.Record
	ledger map[ledgerKey]*models.ProcessedMutation
}

// NewMemoryRepositoryManager returns an empty in-memory RepositoryManager.
func NewMemoryRepositoryManager() RepositoryManager {
	return &MemoryRepositoryManager{
		tables: map[string]map[recordKey]*models.Record{},
		ledger: map[ledgerKey]*models.ProcessedMutation{},
	}
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}

func (m *MemoryRepositoryManager) Repositories() Repositories {
	return memoryRepositories{m: m}
}

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &overlay{
		tables: map[string]map[recordKey]*models.Record{},
		ledger: map[ledgerKey]*models.ProcessedMutation{},
	}
	if err := fn(ctx, memoryRepositories{m: m, tx: tx}); err != nil {
		return err
	}

	for table, rows := range tx.tables {
		base := m.table(table)
		for k, rec := range rows {
			if rec == nil {
				delete(base, k)
			} else {
				base[k] = rec
			}
		}
	}
	for k, e := range tx.ledger {
		if e == nil {
			delete(m.ledger, k)
		} else {
			m.ledger[k] = e
		}
	}
	return nil
}

// table returns the base map of table, creating it. Callers hold the write lock
// or are about to.
func (m *MemoryRepositoryManager) table(name string) map[recordKey]*models.Record {
	t, ok := m.tables[name]
	if !ok {
		t = map[recordKey]*models.Record{}
		m.tables[name] = t
	}
	return t
}

// overlay holds the staged writes of an open transaction. A nil value marks a
// deleted row.
type overlay struct {
	tables map[string]map[recordKey]*models.Record
	ledger map[ledgerKey]*models.ProcessedMutation
}

// memoryRepositories is either bound to a transaction (tx != nil, manager
// lock held by WithTx) or locks around each call.
type memoryRepositories struct {
	m  *MemoryRepositoryManager
	tx *overlay
}

func (r memoryRepositories) Records(table string) records.Repository {
	return &memoryRecords{r: r, table: table}
}

func (r memoryRepositories) Ledger() ledger.Repository {
	return &memoryLedger{r: r}
}

func (r memoryRepositories) read(fn func()) {
	if r.tx == nil {
		r.m.mu.RLock()
		defer r.m.mu.RUnlock()
	}
	fn()
}

func (r memoryRepositories) write(fn func()) {
	if r.tx == nil {
		r.m.mu.Lock()
		defer r.m.mu.Unlock()
	}
	fn()
}

func (r memoryRepositories) getRecord(table string, k recordKey) *models.Record {
	if r.tx != nil {
		if rec, ok := r.tx.tables[table][k]; ok {
			return rec
		}
	}
	return r.m.tables[table][k]
}

func (r memoryRepositories) putRecord(table string, k recordKey, rec *models.Record) {
	if r.tx == nil {
		if rec == nil {
			delete(r.m.table(table), k)
		} else {
			r.m.table(table)[k] = rec
		}
		return
	}
	staged, ok := r.tx.tables[table]
	if !ok {
		staged = map[recordKey]*models.Record{}
		r.tx.tables[table] = staged
	}
	staged[k] = rec
}

// scanRecords visits every visible row of table.
func (r memoryRepositories) scanRecords(table string, fn func(rec *models.Record)) {
	var staged map[recordKey]*models.Record
	if r.tx != nil {
		staged = r.tx.tables[table]
	}
	for k, rec := range r.m.tables[table] {
		if _, ok := staged[k]; ok {
			continue
		}
		fn(rec)
	}
	for _, rec := range staged {
		if rec != nil {
			fn(rec)
		}
	}
}

func (r memoryRepositories) getEntry(k ledgerKey) *models.ProcessedMutation {
	if r.tx != nil {
		if e, ok := r.tx.ledger[k]; ok {
			return e
		}
	}
	return r.m.ledger[k]
}

func (r memoryRepositories) putEntry(k ledgerKey, e *models.ProcessedMutation) {
	if r.tx != nil {
		r.tx.ledger[k] = e
		return
	}
	if e == nil {
		delete(r.m.ledger, k)
	} else {
		r.m.ledger[k] = e
	}
}

func (r memoryRepositories) scanEntries(fn func(e *models.ProcessedMutation)) {
	for k, e := range r.m.ledger {
		if r.tx != nil {
			if _, ok := r.tx.ledger[k]; ok {
				continue
			}
		}
		fn(e)
	}
	if r.tx != nil {
		for _, e := range r.tx.ledger {
			if e != nil {
				fn(e)
			}
		}
	}
}

type memoryRecords struct {
	r     memoryRepositories
	table string
}

func (s *memoryRecords) Get(ctx context.Context, accountID, id string, forUpdate bool) (*models.Record, error) {
	var rec *models.Record
	s.r.read(func() {
		rec = s.r.getRecord(s.table, recordKey{accountID, id})
	})
	if rec == nil {
		return nil, common.ErrorNotFound
	}
	return rec.Clone(), nil
}

func (s *memoryRecords) Insert(ctx context.Context, rec *models.Record) (bool, error) {
	k := recordKey{rec.AccountID, rec.ID}
	created := false
	s.r.write(func() {
		if s.r.getRecord(s.table, k) != nil {
			return
		}
		s.r.putRecord(s.table, k, rec.Clone())
		created = true
	})
	return created, nil
}

func (s *memoryRecords) Update(ctx context.Context, rec *models.Record, prevUpdatedAt time.Time) error {
	k := recordKey{rec.AccountID, rec.ID}
	var err error
	s.r.write(func() {
		cur := s.r.getRecord(s.table, k)
		if cur == nil || !cur.UpdatedAt.Equal(prevUpdatedAt) {
			err = common.ErrVersionConflict
			return
		}
		s.r.putRecord(s.table, k, rec.Clone())
	})
	return err
}

func (s *memoryRecords) Page(ctx context.Context, q models.PageQuery) ([]*models.Record, error) {
	var out []*models.Record
	s.r.read(func() {
		s.r.scanRecords(s.table, func(rec *models.Record) {
			if !q.Matches(rec) {
				return
			}
			if q.After != nil && !q.After.Before(rec.Position()) {
				return
			}
			out = append(out, rec.Clone())
		})
	})

	sort.Slice(out, func(i, j int) bool {
		return out[i].Position().Before(out[j].Position())
	})
	if q.Limit >= 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memoryRecords) Count(ctx context.Context, q models.PageQuery) (int64, error) {
	var n int64
	s.r.read(func() {
		s.r.scanRecords(s.table, func(rec *models.Record) {
			if q.Matches(rec) {
				n++
			}
		})
	})
	return n, nil
}

func (s *memoryRecords) CountReferences(ctx context.Context, accountID string, ref records.Reference) (int64, error) {
	var n int64
	s.r.read(func() {
		s.r.scanRecords(s.table, func(rec *models.Record) {
			if rec.AccountID != accountID || rec.IsDeleted() {
				return
			}
			if v, ok := rec.Fields[ref.Field].(string); !ok || v != ref.Value {
				return
			}
			if ref.Active.Active(rec.Fields) {
				n++
			}
		})
	})
	return n, nil
}

func (s *memoryRecords) PurgeTombstones(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	s.r.write(func() {
		var doomed []recordKey
		s.r.scanRecords(s.table, func(rec *models.Record) {
			if rec.DeletedAt != nil && rec.DeletedAt.Before(before) {
				doomed = append(doomed, recordKey{rec.AccountID, rec.ID})
			}
		})
		for _, k := range doomed {
			s.r.putRecord(s.table, k, nil)
		}
		n = int64(len(doomed))
	})
	return n, nil
}

type memoryLedger struct {
	r memoryRepositories
}

func (s *memoryLedger) Get(ctx context.Context, accountID, mutationID string) (*models.ProcessedMutation, error) {
	var e *models.ProcessedMutation
	s.r.read(func() {
		e = s.r.getEntry(ledgerKey{accountID, mutationID})
	})
	if e == nil {
		return nil, common.ErrorNotFound
	}
	c := *e
	return &c, nil
}

func (s *memoryLedger) Insert(ctx context.Context, e *models.ProcessedMutation) (bool, error) {
	k := ledgerKey{e.AccountID, e.MutationID}
	inserted := false
	s.r.write(func() {
		if s.r.getEntry(k) != nil {
			return
		}
		c := *e
		s.r.putEntry(k, &c)
		inserted = true
	})
	return inserted, nil
}

func (s *memoryLedger) ListExpired(ctx context.Context, before time.Time, after *ledger.Key, limit int) ([]*models.ProcessedMutation, error) {
	var out []*models.ProcessedMutation
	s.r.read(func() {
		s.r.scanEntries(func(e *models.ProcessedMutation) {
			if !e.AppliedAt.Before(before) {
				return
			}
			if after != nil && !keyLess(*after, ledger.KeyOf(e)) {
				return
			}
			c := *e
			out = append(out, &c)
		})
	})

	sort.Slice(out, func(i, j int) bool {
		return keyLess(ledger.KeyOf(out[i]), ledger.KeyOf(out[j]))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryLedger) DeleteExpired(ctx context.Context, before time.Time, through ledger.Key) (int64, error) {
	var n int64
	s.r.write(func() {
		var doomed []ledgerKey
		s.r.scanEntries(func(e *models.ProcessedMutation) {
			if e.AppliedAt.Before(before) && !keyLess(through, ledger.KeyOf(e)) {
				doomed = append(doomed, ledgerKey{e.AccountID, e.MutationID})
			}
		})
		for _, k := range doomed {
			s.r.putEntry(k, nil)
		}
		n = int64(len(doomed))
	})
	return n, nil
}

func keyLess(a, b ledger.Key) bool {
	if !a.AppliedAt.Equal(b.AppliedAt) {
		return a.AppliedAt.Before(b.AppliedAt)
	}
	if a.AccountID != b.AccountID {
		return a.AccountID < b.AccountID
	}
	return a.MutationID < b.MutationID
}
