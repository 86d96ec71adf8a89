package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/adapters"
	"github.com/dmitrijs2005/fieldsync/internal/server/auth"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	servergrpc "github.com/dmitrijs2005/fieldsync/internal/server/grpc"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"
	"github.com/dmitrijs2005/fieldsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const secret = "e2e-secret"

type env struct {
	t     *testing.T
	lis   *bufconn.Listener
	clock *testutil.StubClock
	cfg   *config.Config
}

// newEnv starts an in-process server backed by the in-memory store.
func newEnv(t *testing.T) *env {
	t.Helper()

	clock := testutil.FixedClock()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = secret
	cfg.PullSafetyWindow = 0

	svc := services.NewSyncService(repomanager.NewMemoryRepositoryManager(), adapters.Default(), cfg, clock, logging.Nop{})
	srv := servergrpc.NewGRPCServer("bufnet", logging.Nop{}, svc, clock, secret)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &env{t: t, lis: lis, clock: clock, cfg: cfg}
}

func (e *env) token(accountID string) string {
	e.t.Helper()
	tok, err := auth.GenerateToken(accountID, []byte(secret), time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *env) dial(token string) *GRPCClient {
	e.t.Helper()
	c, err := NewSyncClient("passthrough:///bufnet", token, 5*time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return e.lis.DialContext(ctx) }))
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = c.Close() })
	return c
}

func create(id, name string, at time.Time) models.WireMutation {
	return models.WireMutation{
		MutationID:      "create-" + id,
		Action:          "create",
		Record:          map[string]any{"id": id, "name": name},
		ClientUpdatedAt: models.FormatTime(at),
	}
}

func TestPing(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.dial("").Ping(context.Background()))
}

func TestPushAndPullAll(t *testing.T) {
	e := newEnv(t)
	c := e.dial(e.token("acc-1"))
	ctx := context.Background()

	var batch []models.WireMutation
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		batch = append(batch, create(id, "client "+id, e.clock.Now()))
	}
	resp, err := c.Push(ctx, adapters.Clients, batch)
	require.NoError(t, err)
	require.Len(t, resp.Results, 5)

	e.clock.Advance(time.Second)
	snap, err := c.PullAll(ctx, adapters.Clients, "", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, snap.Total)
	require.Len(t, snap.Items, 5)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, id, snap.Items[i]["id"])
	}
	assert.Equal(t, models.FormatTime(e.clock.Now()), snap.ServerTime)

	// Nothing changed since.
	delta, err := c.PullAll(ctx, adapters.Clients, snap.ServerTime, 2)
	require.NoError(t, err)
	assert.Empty(t, delta.Items)
}

func TestErrorsMapToSentinels(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.dial("").PullAll(ctx, adapters.Clients, "", 10)
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = e.dial("garbage").PullAll(ctx, adapters.Clients, "", 10)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	c := e.dial(e.token("acc-1"))

	_, err = c.PullAll(ctx, "pets", "", 10)
	assert.ErrorIs(t, err, common.ErrUnknownEntity)

	_, err = c.Pull(ctx, adapters.Clients, models.PullRequest{Cursor: "bogus"})
	assert.ErrorIs(t, err, common.ErrInvalidCursor)

	_, err = c.Pull(ctx, adapters.Clients, models.PullRequest{Limit: 1000})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestAccountsAreIsolated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.dial(e.token("acc-1")).Push(ctx, adapters.Clients, []models.WireMutation{create("x", "mine", e.clock.Now())})
	require.NoError(t, err)

	snap, err := e.dial(e.token("acc-2")).PullAll(ctx, adapters.Clients, "", 10)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
}
