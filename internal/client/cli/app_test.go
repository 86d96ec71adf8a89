package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	client.Client

	pingErr     error
	snap        *client.Snapshot
	pullErr     error
	gotEntity   string
	gotSince    string
	gotPageSize int
	pushed      []models.WireMutation
	pushResp    *models.PushResponse
}

func (f *fakeClient) Ping(context.Context) error { return f.pingErr }

func (f *fakeClient) PullAll(_ context.Context, entity, since string, pageSize int) (*client.Snapshot, error) {
	f.gotEntity, f.gotSince, f.gotPageSize = entity, since, pageSize
	return f.snap, f.pullErr
}

func (f *fakeClient) Push(_ context.Context, entity string, ms []models.WireMutation) (*models.PushResponse, error) {
	f.gotEntity = entity
	f.pushed = ms
	return f.pushResp, nil
}

func newTestApp(fc *fakeClient, stdin string) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return &App{config: cfg, client: fc, stdin: strings.NewReader(stdin), stdout: out}, out
}

func TestRun_Ping(t *testing.T) {
	app, out := newTestApp(&fakeClient{}, "")
	require.NoError(t, app.Run(context.Background(), []string{"ping"}))
	assert.Equal(t, "OK\n", out.String())

	app, _ = newTestApp(&fakeClient{pingErr: client.ErrUnavailable}, "")
	assert.ErrorIs(t, app.Run(context.Background(), []string{"ping"}), client.ErrUnavailable)
}

func TestRun_Pull(t *testing.T) {
	fc := &fakeClient{snap: &client.Snapshot{
		Items:      []map[string]any{{"id": "c1", "name": "Acme"}},
		ServerTime: "2025-03-03T09:00:00Z",
		Total:      1,
	}}
	app, out := newTestApp(fc, "")

	require.NoError(t, app.Run(context.Background(), []string{"pull", "clients", "2025-03-01T00:00:00Z"}))
	assert.Equal(t, "clients", fc.gotEntity)
	assert.Equal(t, "2025-03-01T00:00:00Z", fc.gotSince)
	assert.Equal(t, 100, fc.gotPageSize)
	assert.Contains(t, out.String(), `"name": "Acme"`)
	assert.Contains(t, out.String(), `"serverTime": "2025-03-03T09:00:00Z"`)
}

func TestRun_PullPassesErrorsThrough(t *testing.T) {
	app, _ := newTestApp(&fakeClient{pullErr: common.ErrUnknownEntity}, "")
	assert.ErrorIs(t, app.Run(context.Background(), []string{"pull", "pets"}), common.ErrUnknownEntity)
}

func TestRun_PushFromStdinAndFile(t *testing.T) {
	body := `{"mutations":[{"mutationId":"m1","action":"create","record":{"name":"Acme"},"clientUpdatedAt":"2025-03-03T09:00:00Z"}]}`
	fc := &fakeClient{pushResp: &models.PushResponse{
		Results: []models.MutationResult{{MutationID: "m1", Status: models.StatusApplied}},
	}}

	app, out := newTestApp(fc, body)
	require.NoError(t, app.Run(context.Background(), []string{"push", "clients", "-"}))
	require.Len(t, fc.pushed, 1)
	assert.Equal(t, "m1", fc.pushed[0].MutationID)
	assert.Contains(t, out.String(), `"status": "applied"`)

	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	fc.pushed = nil
	app, _ = newTestApp(fc, "")
	require.NoError(t, app.Run(context.Background(), []string{"push", "clients", path}))
	assert.Len(t, fc.pushed, 1)
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"pull"}, {"push", "clients"}, {"dance"}} {
		app, _ := newTestApp(&fakeClient{}, "")
		err := app.Run(context.Background(), args)
		assert.True(t, errors.Is(err, ErrUsage), "%v: %v", args, err)
	}

	app, _ := newTestApp(&fakeClient{}, "{")
	assert.Error(t, app.Run(context.Background(), []string{"push", "clients", "-"}))
}
