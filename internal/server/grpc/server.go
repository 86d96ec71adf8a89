// Package grpc exposes the sync engine as the fieldsync.v1.SyncService gRPC
// service.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	pb "github.com/dmitrijs2005/fieldsync/internal/proto"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"google.golang.org/grpc"
)

// Syncer is the part of services.SyncService the transport needs.
type Syncer interface {
	Pull(ctx context.Context, accountID, entity string, p models.PullParams) (*models.PullResult, error)
	Push(ctx context.Context, accountID, entity string, mutations []models.WireMutation) ([]models.MutationResult, error)
}

type GRPCServer struct {
	pb.UnimplementedSyncServiceServer
	address   string
	sync      Syncer
	clock     timex.Clock
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, sync Syncer, clock timex.Clock, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		sync:      sync,
		clock:     clock,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer builds a grpc.Server with the auth interceptor and the sync
// service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.accessTokenInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)
	pb.RegisterSyncServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully so in-flight pushes finish.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	<-stopped

	return nil
}
