// Package services contains server-side business logic. SyncService is the
// sync engine: delta pull (pull.go) and idempotent mutation push (push.go),
// both generic over the entity adapters.
package services

import (
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/adapters"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/cursor"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// SyncService holds no per-call state; Pull and Push may run concurrently.
type SyncService struct {
	repomanager        repomanager.RepositoryManager
	registry           *adapters.Registry
	cursors            *cursor.Codec
	clock              timex.Clock
	logger             logging.Logger
	recentWindow       time.Duration
	tombstoneRetention time.Duration
	pullSafetyWindow   time.Duration
}

// NewSyncService constructs a SyncService using repositories and server config.
func NewSyncService(m repomanager.RepositoryManager, registry *adapters.Registry, cfg *config.Config,
	clock timex.Clock, logger logging.Logger) *SyncService {
	return &SyncService{
		repomanager:        m,
		registry:           registry,
		cursors:            cursor.NewCodec([]byte(cfg.SecretKey)),
		clock:              clock,
		logger:             logger.With("module", "sync"),
		recentWindow:       cfg.RecentWindow,
		tombstoneRetention: cfg.TombstoneRetention,
		pullSafetyWindow:   cfg.PullSafetyWindow,
	}
}
