package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/adapters"
	"github.com/dmitrijs2005/fieldsync/internal/server/auth"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldsync/internal/server/services"
	"github.com/dmitrijs2005/fieldsync/internal/testutil"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type fixture struct {
	t     *testing.T
	srv   *httptest.Server
	clock *testutil.StubClock
	token string
}

func newFixture(t *testing.T, syncer Syncer) *fixture {
	t.Helper()

	clock := testutil.FixedClock()
	if syncer == nil {
		cfg := &config.Config{}
		cfg.LoadDefaults()
		cfg.SecretKey = secret
		cfg.PullSafetyWindow = 0
		syncer = services.NewSyncService(repomanager.NewMemoryRepositoryManager(), adapters.Default(), cfg, clock, logging.Nop{})
	}

	api := NewServer("", logging.Nop{}, syncer, clock, secret, []string{"https://app.example.com"})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	token, err := auth.GenerateToken("acc-1", []byte(secret), time.Hour)
	require.NoError(t, err)

	return &fixture{t: t, srv: srv, clock: clock, token: token}
}

func (f *fixture) do(method, path string, body any, token string) (*http.Response, []byte) {
	f.t.Helper()

	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(f.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(f.t, err)
	return resp, buf.Bytes()
}

func decodeError(t *testing.T, raw []byte) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"OK"}`, string(body))
}

func TestPushAndPull(t *testing.T) {
	f := newFixture(t, nil)

	push := models.PushRequest{Mutations: []models.WireMutation{{
		MutationID:      "m1",
		Action:          "create",
		Record:          map[string]any{"id": "c1", "name": "Acme"},
		ClientUpdatedAt: models.FormatTime(f.clock.Now()),
	}}}

	resp, body := f.do(http.MethodPost, "/api/v1/sync/clients/push", push, f.token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var pushed models.PushResponse
	require.NoError(t, json.Unmarshal(body, &pushed))
	require.Len(t, pushed.Results, 1)
	assert.Equal(t, models.StatusApplied, pushed.Results[0].Status)

	// Replaying the same mutation returns the stored result.
	_, again := f.do(http.MethodPost, "/api/v1/sync/clients/push", push, f.token)
	assert.JSONEq(t, string(body), string(again))

	f.clock.Advance(time.Second)
	resp, body = f.do(http.MethodGet, "/api/v1/sync/clients?limit=10", nil, f.token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var pulled models.PullResponse
	require.NoError(t, json.Unmarshal(body, &pulled))
	require.Len(t, pulled.Items, 1)
	assert.Equal(t, "Acme", pulled.Items[0]["name"])
	assert.Nil(t, pulled.NextCursor)
	assert.Equal(t, models.FormatTime(f.clock.Now()), pulled.ServerTime)
}

func TestPull_Paginates(t *testing.T) {
	f := newFixture(t, nil)

	var ms []models.WireMutation
	for _, id := range []string{"a", "b", "c"} {
		ms = append(ms, models.WireMutation{
			MutationID: id, Action: "create",
			Record:          map[string]any{"id": id, "name": id},
			ClientUpdatedAt: models.FormatTime(f.clock.Now()),
		})
	}
	resp, _ := f.do(http.MethodPost, "/api/v1/sync/clients/push", models.PushRequest{Mutations: ms}, f.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page models.PullResponse
	_, body := f.do(http.MethodGet, "/api/v1/sync/clients?limit=2", nil, f.token)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.True(t, page.HasMore)
	assert.EqualValues(t, 3, page.Total)
	require.NotNil(t, page.NextCursor)

	_, body = f.do(http.MethodGet, "/api/v1/sync/clients?limit=2&cursor="+*page.NextCursor, nil, f.token)
	var next models.PullResponse
	require.NoError(t, json.Unmarshal(body, &next))
	require.Len(t, next.Items, 1)
	assert.Equal(t, "c", next.Items[0]["id"])
	assert.False(t, next.HasMore)

	// limit=0 falls back to the default page size, as on gRPC.
	resp, body = f.do(http.MethodGet, "/api/v1/sync/clients?limit=0", nil, f.token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var all models.PullResponse
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all.Items, 3)
	assert.False(t, all.HasMore)
}

func TestErrors(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		token  string
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/v1/sync/clients", nil, "", http.StatusUnauthorized, common.CodeUnauthorized},
		{"bad token", http.MethodGet, "/api/v1/sync/clients", nil, "nope", http.StatusUnauthorized, common.CodeUnauthorized},
		{"unknown entity", http.MethodGet, "/api/v1/sync/pets", nil, f.token, http.StatusNotFound, common.CodeUnknownEntity},
		{"bad limit", http.MethodGet, "/api/v1/sync/clients?limit=501", nil, f.token, http.StatusBadRequest, common.CodeValidation},
		{"bad cursor", http.MethodGet, "/api/v1/sync/clients?cursor=xyz", nil, f.token, http.StatusBadRequest, common.CodeInvalidCursor},
		{"bad scope", http.MethodGet, "/api/v1/sync/clients?scope=mine", nil, f.token, http.StatusBadRequest, common.CodeValidation},
		{"bad json", http.MethodPost, "/api/v1/sync/clients/push", "{", f.token, http.StatusBadRequest, common.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(tt.method, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.status, resp.StatusCode)
			e := decodeError(t, body)
			assert.Equal(t, tt.code, e.Error)
			assert.NotEmpty(t, e.Message)
		})
	}
}

type fakeSyncer struct{ err error }

func (f fakeSyncer) Pull(context.Context, string, string, models.PullParams) (*models.PullResult, error) {
	return nil, f.err
}

func (f fakeSyncer) Push(context.Context, string, string, []models.WireMutation) ([]models.MutationResult, error) {
	return nil, f.err
}

func TestStorageErrorIs503(t *testing.T) {
	f := newFixture(t, fakeSyncer{err: errors.Join(common.ErrorStorage, errors.New("too many connections"))})

	resp, body := f.do(http.MethodPost, "/api/v1/sync/clients/push", models.PushRequest{}, f.token)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	e := decodeError(t, body)
	assert.Equal(t, common.CodeStorage, e.Error)
	assert.Equal(t, common.ErrorStorage.Error(), e.Message)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil)

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/v1/sync/clients", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp2, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	api := NewServer("", logging.Nop{}, fakeSyncer{}, testutil.FixedClock(), secret, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Serve(ctx, lis) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
