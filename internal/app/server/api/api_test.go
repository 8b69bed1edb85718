package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hammer/internal/domain/session"
	"hammer/internal/domain/sync"
	"hammer/internal/infrastructure/storage/memory"
	"hammer/internal/utils/logger"
)

func newTestServer(t *testing.T, origins ...string) (*httptest.Server, string) {
	t.Helper()
	log := logger.Discard()

	sessions := session.NewService(memory.NewSessionRepository(), log, time.Hour)
	token, err := sessions.Create(context.Background(), 1)
	require.NoError(t, err)

	handler := New(Deps{
		Sync:        sync.NewService(memory.NewSyncRepository(), log, nil),
		Sessions:    sessions,
		CORSOrigins: origins,
	}, log)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, token
}

func do(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_RequiresToken(t *testing.T) {
	srv, token := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/project/1/novel/begin_sync", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/project/1/novel/begin_sync", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/project/2/novel/begin_sync", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_TestAuth(t *testing.T) {
	srv, token := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/account/test_auth/1", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, "https://app.example")

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/project/1/novel/begin_sync", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,x-sync-id")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(strings.ToLower(resp.Header.Get("Access-Control-Allow-Headers")), "x-sync-id"))
}
