package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hammer/internal/app/client/projectsync"
	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
	"hammer/internal/utils/logger"
)

func newTestHTTPClient(t *testing.T, srv *testServer, userID int) *httpClient {
	t.Helper()
	cfg := testConfig(t, srv)
	cfg.UserID = userID

	cl, err := NewHTTPClient(cfg, logger.Discard())
	require.NoError(t, err)
	cl.SetToken(srv.token(t, userID))
	return cl
}

func TestHTTPClient_HealthAndAuth(t *testing.T) {
	srv := newTestServer(t)
	cl := newTestHTTPClient(t, srv, 1)
	ctx := context.Background()

	require.NoError(t, cl.HealthCheck(ctx))
	require.NoError(t, cl.TestAuth(ctx))

	cl.SetUserID(2)
	err := cl.TestAuth(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	cl.SetUserID(1)
	cl.SetToken("bogus")
	assert.ErrorIs(t, cl.TestAuth(ctx), ErrUnauthorized)
}

func TestHTTPClient_ProjectSession(t *testing.T) {
	srv := newTestServer(t)
	cl := newTestHTTPClient(t, srv, 1)
	ctx := context.Background()
	const project = "My Novel"

	began, err := cl.BeginSync(ctx, project, &entity.ClientEntityState{}, false)
	require.NoError(t, err)
	require.NotEmpty(t, began.SyncID)
	assert.Empty(t, began.ServerState)
	assert.Empty(t, began.IDSequence)

	scene := &entity.Scene{ID: 1, SceneType: entity.SceneTypeScene, Name: "Opening", Content: "It was a dark night"}

	hash, err := cl.UploadEntity(ctx, project, began.SyncID, scene, "", false)
	require.NoError(t, err)
	assert.Equal(t, entity.Hash(scene), hash)

	// Актуальная версия у клиента: 304
	got, modified, err := cl.DownloadEntity(ctx, project, began.SyncID, 1, hash)
	require.NoError(t, err)
	assert.False(t, modified)
	assert.Nil(t, got)

	got, modified, err = cl.DownloadEntity(ctx, project, began.SyncID, 1, "")
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Equal(t, scene, got)

	edited := *scene
	edited.Content = "It was a stormy night"
	_, err = cl.UploadEntity(ctx, project, began.SyncID, &edited, "stale", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, sync.ErrConflict)
	var conflict *sync.EntityConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, scene, conflict.Entity)

	forced, err := cl.UploadEntity(ctx, project, began.SyncID, &edited, "", true)
	require.NoError(t, err)
	assert.Equal(t, entity.Hash(&edited), forced)

	_, _, err = cl.DownloadEntity(ctx, project, began.SyncID, 99, "")
	assert.ErrorIs(t, err, sync.ErrEntityNotFound)

	deleted, err := cl.DeleteEntity(ctx, project, began.SyncID, 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = cl.DeleteEntity(ctx, project, began.SyncID, 1)
	require.NoError(t, err)
	assert.False(t, deleted)

	lastSync := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	lastID := 5
	require.NoError(t, cl.EndSync(ctx, project, began.SyncID, &lastSync, &lastID))

	err = cl.EndSync(ctx, project, began.SyncID, nil, nil)
	assert.ErrorIs(t, err, sync.ErrInvalidSyncSession)

	next, err := cl.BeginSync(ctx, project, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 5, next.LastID)
	assert.True(t, lastSync.Equal(next.LastSync))
	assert.Equal(t, []int{1}, next.DeletedIDs)
	require.NoError(t, cl.AbortSync(ctx, project, next.SyncID))
	assert.ErrorIs(t, cl.AbortSync(ctx, project, next.SyncID), sync.ErrInvalidSyncSession)

	// abort_sync не сдвигает lastSync
	last, err := cl.BeginSync(ctx, project, nil, true)
	require.NoError(t, err)
	assert.True(t, lastSync.Equal(last.LastSync))
	require.NoError(t, cl.EndSync(ctx, project, last.SyncID, nil, nil))
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := newTestServer(t)
	cl := newTestHTTPClient(t, srv, 1)
	srv.srv.Close()

	_, err := cl.BeginSync(context.Background(), "novel", nil, true)
	require.Error(t, err)
	assert.True(t, projectsync.IsNetworkError(err))

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want error
	}{
		{"unauthorized", &APIError{Status: 401, Code: "Unauthorized"}, ErrUnauthorized},
		{"invalid session", &APIError{Status: 400, Code: "Invalid Sync Session"}, sync.ErrInvalidSyncSession},
		{"not found", &APIError{Status: 404, Code: "Entity Not Found"}, sync.ErrEntityNotFound},
		{"other", &APIError{Status: 500, Code: "Internal Error"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == nil {
				assert.Nil(t, tt.err.Unwrap())
				return
			}
			assert.ErrorIs(t, tt.err, tt.want)
		})
	}
}
