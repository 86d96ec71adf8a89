package grpc

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	pb "github.com/dmitrijs2005/fieldsync/internal/proto"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type pullRequest struct {
	Entity string `json:"entity"`
	models.PullRequest
}

type pushRequest struct {
	Entity string `json:"entity"`
	models.PushRequest
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return pb.Encode(map[string]string{"status": "OK"})
}

func (s *GRPCServer) Pull(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, ok := AccountIDFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	var in pullRequest
	if err := pb.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	params, err := in.Params()
	if err != nil {
		return nil, s.fail(ctx, "pull", in.Entity, err)
	}

	res, err := s.sync.Pull(ctx, accountID, in.Entity, params)
	if err != nil {
		return nil, s.fail(ctx, "pull", in.Entity, err)
	}

	return s.encode(ctx, res.Wire())
}

func (s *GRPCServer) Push(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, ok := AccountIDFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	var in pushRequest
	if err := pb.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	results, err := s.sync.Push(ctx, accountID, in.Entity, in.Mutations)
	if err != nil {
		return nil, s.fail(ctx, "push", in.Entity, err)
	}

	return s.encode(ctx, models.PushResponse{
		Results:    results,
		ServerTime: models.FormatTime(s.clock.Now()),
	})
}

func (s *GRPCServer) encode(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := pb.Encode(v)
	if err != nil {
		s.logger.Error(ctx, "encode response", "error", err)
		return nil, status.Error(codes.Internal, common.ErrorInternal.Error())
	}
	return out, nil
}

func (s *GRPCServer) fail(ctx context.Context, op, entity string, err error) error {
	switch common.ErrorCode(err) {
	case common.CodeInternal, common.CodeStorage:
		s.logger.Error(ctx, op+" failed", "entity", entity, "error", err)
	default:
		s.logger.Debug(ctx, op+" refused", "entity", entity, "error", err)
	}
	return toStatus(err)
}
