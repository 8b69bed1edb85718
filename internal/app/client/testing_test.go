package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hammer/internal/app/client/config"
	"hammer/internal/app/server/api"
	"hammer/internal/domain/session"
	"hammer/internal/domain/sync"
	"hammer/internal/infrastructure/storage/memory"
	"hammer/internal/utils/logger"
)

type testServer struct {
	srv      *httptest.Server
	sessions *session.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard()

	sessions := session.NewService(memory.NewSessionRepository(), log, time.Hour)
	handler := api.New(api.Deps{
		Sync:     sync.NewService(memory.NewSyncRepository(), log, nil),
		Sessions: sessions,
	}, log)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, sessions: sessions}
}

func (s *testServer) token(t *testing.T, userID int) string {
	t.Helper()
	token, err := s.sessions.Create(context.Background(), userID)
	require.NoError(t, err)
	return token
}

func testConfig(t *testing.T, srv *testServer) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:              "local",
		ServerAddress:    strings.TrimPrefix(srv.srv.URL, "http://"),
		ConfigDir:        dir,
		TokenPath:        filepath.Join(dir, "token"),
		DataPath:         filepath.Join(dir, "data.db"),
		LogPath:          filepath.Join(dir, "hammer.log"),
		AutoCloseSyncLog: true,
		WatchDebounce:    50 * time.Millisecond,
		SyncInterval:     time.Hour,
	}
}

// newTestApp создает клиента с выполненным входом
func newTestApp(t *testing.T, srv *testServer, userID int) *App {
	t.Helper()
	app, err := New(testConfig(t, srv), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.NoError(t, app.Login(context.Background(), userID, srv.token(t, userID)))
	return app
}
