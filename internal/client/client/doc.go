// Package client contains device-side building blocks for fieldsync.
//
// # Overview
//
// The package provides:
//  1. A transport contract (see the Client interface) covering Ping, Pull,
//     PullAll and Push.
//  2. A gRPC implementation (see GRPCClient) that manages a connection,
//     injects the access token through an interceptor and maps gRPC status
//     errors back to the sentinels in internal/common.
//  3. Replica, an in-memory offline copy of one entity with an outbox of
//     pending edits, synchronized with Sync.
//
// # Error Handling
//
// Server errors come back as the common sentinels (ErrInvalidCursor,
// ErrorValidation, ErrUnknownEntity, ErrorUnauthorized, ErrorStorage), plus
// ErrUnavailable for transport failures and ErrNoToken when no token is set.
package client
