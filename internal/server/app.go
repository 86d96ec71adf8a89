// Package server wires the fieldsync server together: storage, the sync
// engine, the gRPC and HTTP transports and the maintenance pruner.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/adapters"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/httpapi"
	"github.com/dmitrijs2005/fieldsync/internal/server/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/fieldsync/internal/server/grpc"
)

var (
	openPostgres = repomanager.OpenPostgres

	newArchiver = func(ctx context.Context, s ledger.S3Settings, clock timex.Clock) (ledger.Archiver, error) {
		return ledger.NewS3Archiver(ctx, s, clock)
	}
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	manager repomanager.RepositoryManager
	sync    *services.SyncService
	pruner  *ledger.Pruner
	clock   timex.Clock
}

// NewApp validates c, opens storage (running migrations for postgres) and
// builds every component. Logs go to logOut as JSON lines.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSON(logOut, c.LogLevel)
	clock := timex.RealClock{}

	manager, err := newRepositoryManager(ctx, c)
	if err != nil {
		return nil, err
	}

	var archiver ledger.Archiver
	if c.S3Bucket != "" {
		archiver, err = newArchiver(ctx, ledger.S3Settings{
			User:     c.S3RootUser,
			Password: c.S3RootPassword,
			Bucket:   c.S3Bucket,
			Region:   c.S3Region,
			Endpoint: c.S3BaseEndpoint,
		}, clock)
		if err != nil {
			_ = manager.Close()
			return nil, fmt.Errorf("ledger archive init error: %w", err)
		}
	}

	registry := adapters.Default()
	pruner := ledger.NewPruner(manager, registry, archiver, clock, ledger.PrunerConfig{
		LedgerRetention:    c.LedgerRetention,
		TombstoneRetention: c.TombstoneRetention,
		Interval:           c.PruneInterval,
	}, logger)

	return &App{
		config:  c,
		logger:  logger,
		manager: manager,
		sync:    services.NewSyncService(manager, registry, c, clock, logger),
		pruner:  pruner,
		clock:   clock,
	}, nil
}

func newRepositoryManager(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	if c.Storage == config.StorageMemory {
		return repomanager.NewMemoryRepositoryManager(), nil
	}

	manager, err := openPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := manager.RunMigrations(ctx); err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}
	return manager, nil
}

// Run serves until ctx is cancelled, a termination signal arrives or one of
// the components fails; the others are then stopped and storage is closed.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	grpcServer := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sync, app.clock, app.config.SecretKey)
	httpServer := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.sync, app.clock,
		app.config.SecretKey, app.config.AllowedOrigins)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Run(ctx) })
	g.Go(func() error { return httpServer.Run(ctx) })
	g.Go(func() error { return app.pruner.Run(ctx) })

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
	return errors.Join(err, app.manager.Close())
}

// Main loads configuration, builds the app and runs it.
func Main(ctx context.Context) error {
	app, err := NewApp(ctx, config.LoadConfig(), os.Stdout)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
