package repomanager

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/records"
)

// Repositories vends repositories bound to one connection or transaction.
type Repositories interface {
	Records(table string) records.Repository
	Ledger() ledger.Repository
}

// RepositoryManager owns the storage backend.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// Repositories returns non-transactional repositories for reads.
	Repositories() Repositories
	// WithTx runs fn in a transaction: commit when fn returns nil, rollback
	// otherwise. fn may be called again if the transaction hits a transient
	// conflict, so it must not have side effects outside repos.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Close() error
}
