package proto

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// ErrorDomain tags the ErrorInfo detail attached to failed calls; its Reason
// is one of the common.Code* wire codes.
const ErrorDomain = "fieldsync"

// ErrorInfo builds the detail the server attaches to a failed call.
func ErrorInfo(code string) *errdetails.ErrorInfo {
	return &errdetails.ErrorInfo{Reason: code, Domain: ErrorDomain}
}

// ErrorReason extracts the wire code from a status error. It returns "" when
// err carries no fieldsync ErrorInfo.
func ErrorReason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == ErrorDomain {
			return info.Reason
		}
	}
	return ""
}
