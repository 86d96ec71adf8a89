package grpc

import (
	"github.com/dmitrijs2005/fieldsync/internal/common"
	pb "github.com/dmitrijs2005/fieldsync/internal/proto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodes = map[string]codes.Code{
	common.CodeInvalidCursor:   codes.InvalidArgument,
	common.CodeValidation:      codes.InvalidArgument,
	common.CodeUnknownEntity:   codes.NotFound,
	common.CodeNotFound:        codes.NotFound,
	common.CodeUnauthorized:    codes.Unauthenticated,
	common.CodeStorage:         codes.Unavailable,
	common.CodeRequestCanceled: codes.Canceled,
	common.CodeInternal:        codes.Internal,
}

// toStatus converts a service error into a gRPC status. The wire code goes
// into an ErrorInfo detail so clients can tell an invalid cursor from other
// invalid arguments.
func toStatus(err error) error {
	code := common.ErrorCode(err)

	msg := err.Error()
	switch code {
	case common.CodeInternal:
		msg = common.ErrorInternal.Error()
	case common.CodeStorage:
		msg = common.ErrorStorage.Error()
	}

	st := status.New(grpcCodes[code], msg)
	if withInfo, derr := st.WithDetails(pb.ErrorInfo(code)); derr == nil {
		st = withInfo
	}
	return st.Err()
}
