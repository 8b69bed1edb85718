package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hammer/internal/app/client/projectsync"
	"hammer/internal/app/client/store"
	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
	"hammer/internal/utils/logger"
)

func TestApp_Login(t *testing.T) {
	srv := newTestServer(t)
	cfg := testConfig(t, srv)
	ctx := context.Background()

	app, err := New(cfg, logger.Discard())
	require.NoError(t, err)
	assert.False(t, app.IsAuthenticated())
	assert.ErrorIs(t, app.TestAuth(ctx), ErrNotAuthenticated)

	assert.ErrorIs(t, app.Login(ctx, 0, "token"), ErrInvalidUserID)
	assert.Error(t, app.Login(ctx, 7, "bogus"))
	assert.False(t, app.IsAuthenticated())

	require.NoError(t, app.Login(ctx, 7, srv.token(t, 7)+"\n"))
	assert.True(t, app.IsAuthenticated())
	assert.Equal(t, 7, app.UserID())
	require.NoError(t, app.TestAuth(ctx))
	require.NoError(t, app.Close())

	// Токен и пользователь переживают перезапуск
	reopened, err := New(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	assert.True(t, reopened.IsAuthenticated())
	assert.Equal(t, 7, reopened.UserID())
	require.NoError(t, reopened.TestAuth(ctx))

	require.NoError(t, reopened.Logout())
	assert.False(t, reopened.IsAuthenticated())
	_, err = reopened.GetToken()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestApp_Projects(t *testing.T) {
	srv := newTestServer(t)
	app := newTestApp(t, srv, 1)
	ctx := context.Background()

	assert.ErrorIs(t, app.CreateProject(ctx, ""), sync.ErrInvalidProject)
	assert.ErrorIs(t, app.CreateProject(ctx, "bad/name"), sync.ErrInvalidProject)

	require.NoError(t, app.CreateProject(ctx, "Novel"))
	assert.ErrorIs(t, app.CreateProject(ctx, "Novel"), store.ErrProjectExists)

	projects, err := app.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Novel", projects[0].Name)
	assert.Nil(t, projects[0].LastSync)
}

func TestApp_PutEntityAllocatesIDs(t *testing.T) {
	srv := newTestServer(t)
	app := newTestApp(t, srv, 1)
	ctx := context.Background()
	require.NoError(t, app.CreateProject(ctx, "Novel"))

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	first, err := app.PutEntity(ctx, "Novel", &entity.Note{Created: created, Content: "first"})
	require.NoError(t, err)
	second, err := app.PutEntity(ctx, "Novel", &entity.TimelineEvent{Content: "second"})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Entity.GetID())
	assert.Equal(t, 2, second.Entity.GetID())
	assert.True(t, first.Modified())

	_, err = app.PutEntity(ctx, "Novel", &entity.Note{ID: 3})
	assert.ErrorIs(t, err, entity.ErrInvalidEntity)

	records, err := app.ListEntities(ctx, "Novel", entity.TypeNote)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "first", records[0].Entity.(*entity.Note).Content)

	require.NoError(t, app.DeleteEntity(ctx, "Novel", 1))
	_, err = app.LoadEntity(ctx, "Novel", 1)
	assert.ErrorIs(t, err, store.ErrEntityNotFound)
}

func TestApp_SyncBetweenDevices(t *testing.T) {
	srv := newTestServer(t)
	laptop := newTestApp(t, srv, 1)
	desktop := newTestApp(t, srv, 1)
	ctx := context.Background()

	require.NoError(t, laptop.CreateProject(ctx, "Novel"))
	require.NoError(t, desktop.CreateProject(ctx, "Novel"))

	scene, err := laptop.PutEntity(ctx, "Novel", &entity.Scene{
		SceneType: entity.SceneTypeScene,
		Name:      "Opening",
		Content:   "It was a dark night",
	})
	require.NoError(t, err)

	var logs []projectsync.LogMessage
	res, err := laptop.Sync(ctx, "Novel", projectsync.Callbacks{
		OnLog: func(m projectsync.LogMessage) { logs = append(logs, m) },
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Uploaded)
	assert.NotEmpty(t, logs)

	res, err = desktop.Sync(ctx, "Novel", projectsync.Callbacks{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Downloaded)

	got, err := desktop.LoadEntity(ctx, "Novel", scene.Entity.GetID())
	require.NoError(t, err)
	assert.Equal(t, scene.Entity, got.Entity)
	assert.False(t, got.Modified())

	project, err := desktop.GetProject(ctx, "Novel")
	require.NoError(t, err)
	require.NotNil(t, project.LastSync)
	assert.Equal(t, 1, project.LastID)

	// Новая сущность на втором устройстве получает следующий id
	note, err := desktop.PutEntity(ctx, "Novel", &entity.Note{Created: time.Now().UTC(), Content: "idea"})
	require.NoError(t, err)
	assert.Equal(t, 2, note.Entity.GetID())

	stats := desktop.GetSyncService().GetStats()
	assert.Equal(t, 1, stats.TotalSyncs)
	assert.Equal(t, 1, stats.TotalDownloaded)
	assert.False(t, desktop.GetSyncService().GetLastSyncTime().IsZero())
}

func TestApp_SyncRequiresLoginAndProject(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	anonymous, err := New(testConfig(t, srv), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = anonymous.Close() })
	require.NoError(t, anonymous.CreateProject(ctx, "Novel"))

	_, err = anonymous.Sync(ctx, "Novel", projectsync.Callbacks{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	app := newTestApp(t, srv, 1)
	_, err = app.Sync(ctx, "Missing", projectsync.Callbacks{})
	assert.ErrorIs(t, err, store.ErrProjectNotFound)
}

func TestApp_AutoCloseSyncLog(t *testing.T) {
	srv := newTestServer(t)
	cfg := testConfig(t, srv)

	app, err := New(cfg, logger.Discard())
	require.NoError(t, err)
	assert.True(t, app.AutoCloseSyncLog())

	require.NoError(t, app.SetAutoCloseSyncLog(false))
	assert.False(t, app.AutoCloseSyncLog())
	require.NoError(t, app.Close())

	reopened, err := New(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	assert.False(t, reopened.AutoCloseSyncLog())
}

func TestApp_Synchronizer(t *testing.T) {
	srv := newTestServer(t)
	app := newTestApp(t, srv, 1)

	a := app.Synchronizer("Novel")
	assert.Same(t, a, app.Synchronizer("Novel"))
	assert.NotSame(t, a, app.Synchronizer("Other"))
	assert.Equal(t, "Novel", a.Project())
	assert.Equal(t, projectsync.StateIdle, a.State())
}
