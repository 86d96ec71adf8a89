package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound and outbound requests.
const AccessTokenHeaderName = "access_token"

// Pull limits.
const (
	DefaultPullLimit = 100
	MaxPullLimit     = 500
)

// MaxPushBatch bounds the number of mutations accepted by one push.
const MaxPushBatch = 500

// MaxRecordIDLength bounds a client-supplied record id, in bytes. Pull
// cursors embed the id of the last record on a page, so every stored id must
// fit in one.
const MaxRecordIDLength = 256
