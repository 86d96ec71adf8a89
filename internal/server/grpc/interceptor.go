package grpc

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	pb "github.com/dmitrijs2005/fieldsync/internal/proto"
	"github.com/dmitrijs2005/fieldsync/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const accountIDKey ctxKey = "accountID"

// protectedMethods need a valid access token.
var protectedMethods = map[string]bool{
	pb.SyncService_Pull_FullMethodName: true,
	pb.SyncService_Push_FullMethodName: true,
}

// AccountIDFromContext returns the account resolved by the interceptor.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if protectedMethods[info.FullMethod] {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AccessTokenHeaderName)
			if len(values) > 0 {
				accessToken = values[0]
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		accountID, err := auth.AccountIDFromToken(accessToken, s.jwtSecret)
		if err != nil {
			return nil, toStatus(err)
		}

		ctx = context.WithValue(ctx, accountIDKey, accountID)
	}

	return handler(ctx, req)
}
