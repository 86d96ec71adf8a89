package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	pb "github.com/dmitrijs2005/fieldsync/internal/proto"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is the device-side view of the sync server.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Pull(ctx context.Context, entity string, req models.PullRequest) (*models.PullResponse, error)
	PullAll(ctx context.Context, entity, since string, pageSize int) (*Snapshot, error)
	Push(ctx context.Context, entity string, mutations []models.WireMutation) (*models.PushResponse, error)
}

// Snapshot is every page of one pull walk. ServerTime comes from the first
// page and is the since to use for the next delta.
type Snapshot struct {
	Items      []map[string]any
	ServerTime string
	Total      int64
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.SyncServiceClient
	accessToken string
	timeout     time.Duration
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method != pb.SyncService_Ping_FullMethodName {
		if s.accessToken == "" {
			return ErrNoToken
		}
		ctx = withAccessToken(ctx, s.accessToken)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewSyncClient connects to endpointURL. Extra dial options are appended to
// the defaults (insecure transport, token interceptor).
func NewSyncClient(endpointURL, accessToken string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken, timeout: timeout}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewSyncServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &structpb.Struct{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.GetFields()["status"].GetStringValue() != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Pull(ctx context.Context, entity string, req models.PullRequest) (*models.PullResponse, error) {
	in, err := pb.Encode(struct {
		Entity string `json:"entity"`
		models.PullRequest
	}{entity, req})
	if err != nil {
		return nil, err
	}

	out, err := s.client.Pull(ctx, in)
	if err != nil {
		return nil, s.mapError(err)
	}

	var resp models.PullResponse
	if err := pb.Decode(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PullAll walks pages until hasMore is false. An empty since asks for a full
// sync. A common.ErrInvalidCursor means the device must drop since and start
// over.
func (s *GRPCClient) PullAll(ctx context.Context, entity, since string, pageSize int) (*Snapshot, error) {
	snap := &Snapshot{}
	req := models.PullRequest{Since: since, Limit: pageSize}

	for page := 0; ; page++ {
		resp, err := s.Pull(ctx, entity, req)
		if err != nil {
			return nil, err
		}
		if page == 0 {
			snap.ServerTime = resp.ServerTime
			snap.Total = resp.Total
		}
		snap.Items = append(snap.Items, resp.Items...)

		if !resp.HasMore {
			return snap, nil
		}
		if resp.NextCursor == nil {
			return nil, fmt.Errorf("%w: page %d has more items but no cursor", common.ErrInvalidCursor, page)
		}
		req.Cursor = *resp.NextCursor
	}
}

func (s *GRPCClient) Push(ctx context.Context, entity string, mutations []models.WireMutation) (*models.PushResponse, error) {
	in, err := pb.Encode(struct {
		Entity string `json:"entity"`
		models.PushRequest
	}{entity, models.PushRequest{Mutations: mutations}})
	if err != nil {
		return nil, err
	}

	out, err := s.client.Push(ctx, in)
	if err != nil {
		return nil, s.mapError(err)
	}

	var resp models.PushResponse
	if err := pb.Decode(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// mapError turns a status error back into the sentinels from common, so
// callers use errors.Is the same way the server does.
func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoToken) {
		return err
	}

	st, _ := status.FromError(err)
	if reason := pb.ErrorReason(err); reason != "" {
		return fmt.Errorf("%w: %s", common.ErrorFromCode(reason), st.Message())
	}

	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrorUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
