package ledger

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/adapters"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

const defaultBatchSize = 500

// PrunerConfig holds the retention policy.
type PrunerConfig struct {
	LedgerRetention    time.Duration
	TombstoneRetention time.Duration
	Interval           time.Duration
	BatchSize          int
}

// Pruner periodically archives and deletes expired ledger entries and purges
// old tombstones.
type Pruner struct {
	manager  repomanager.RepositoryManager
	registry *adapters.Registry
	archiver Archiver
	clock    timex.Clock
	cfg      PrunerConfig
	logger   logging.Logger
}

// Stats summarizes one pruning pass.
type Stats struct {
	LedgerArchived int
	LedgerDeleted  int64
	Tombstones     int64
}

// NewPruner wires a pruner; archiver may be nil to skip archiving.
func NewPruner(manager repomanager.RepositoryManager, registry *adapters.Registry, archiver Archiver,
	clock timex.Clock, cfg PrunerConfig, logger logging.Logger) *Pruner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Pruner{
		manager:  manager,
		registry: registry,
		archiver: archiver,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With("module", "pruner"),
	}
}

// Run prunes once per interval until ctx is cancelled. A failed pass is
// logged and retried on the next tick.
func (p *Pruner) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := p.PruneOnce(ctx)
			if err != nil {
				p.logger.Error(ctx, "prune failed", "error", err)
				continue
			}
			p.logger.Info(ctx, "prune finished",
				"ledger_archived", stats.LedgerArchived,
				"ledger_deleted", stats.LedgerDeleted,
				"tombstones", stats.Tombstones)
		}
	}
}

// PruneOnce runs a single pass. Ledger entries are deleted only after their
// batch was archived.
func (p *Pruner) PruneOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	now := p.clock.Now()
	repos := p.manager.Repositories()

	cutoff := now.Add(-p.cfg.LedgerRetention)
	for {
		batch, err := repos.Ledger().ListExpired(ctx, cutoff, nil, p.cfg.BatchSize)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			break
		}
		if p.archiver != nil {
			if err := p.archiver.Archive(ctx, batch); err != nil {
				return stats, err
			}
			stats.LedgerArchived += len(batch)
		}
		n, err := repos.Ledger().DeleteExpired(ctx, cutoff, ledger.KeyOf(batch[len(batch)-1]))
		if err != nil {
			return stats, err
		}
		stats.LedgerDeleted += n
		if n == 0 || len(batch) < p.cfg.BatchSize {
			break
		}
	}

	horizon := now.Add(-p.cfg.TombstoneRetention)
	for _, a := range p.registry.All() {
		n, err := a.Purge(ctx, repos, horizon)
		if err != nil {
			return stats, err
		}
		if n > 0 {
			p.logger.Debug(ctx, "tombstones purged", "entity", a.Entity(), "count", n)
		}
		stats.Tombstones += n
	}
	return stats, nil
}
