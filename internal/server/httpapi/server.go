// Package httpapi serves the sync engine over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"github.com/rs/cors"
)

const (
	maxBodyBytes    = 8 << 20
	shutdownTimeout = 10 * time.Second
)

// Syncer is the part of services.SyncService the API needs.
type Syncer interface {
	Pull(ctx context.Context, accountID, entity string, p models.PullParams) (*models.PullResult, error)
	Push(ctx context.Context, accountID, entity string, mutations []models.WireMutation) ([]models.MutationResult, error)
}

type Server struct {
	address        string
	sync           Syncer
	clock          timex.Clock
	logger         logging.Logger
	jwtSecret      []byte
	allowedOrigins []string
}

func NewServer(address string, l logging.Logger, sync Syncer, clock timex.Clock, secretKey string, allowedOrigins []string) *Server {
	return &Server{
		address:        address,
		sync:           sync,
		clock:          clock,
		logger:         l.With("module", "http_server"),
		jwtSecret:      []byte(secretKey),
		allowedOrigins: allowedOrigins,
	}
}

func (s *Server) newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	})
}

// Handler returns the full routing tree wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /api/v1/sync/{entity}", s.authenticated(s.handlePull))
	mux.Handle("POST /api/v1/sync/{entity}/push", s.authenticated(s.handlePush))
	return s.newCORS().Handler(mux)
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve handles requests on lis until ctx is cancelled, then shuts down,
// letting in-flight requests finish.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
