package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hammer/internal/app/client/projectsync"
	"hammer/internal/domain/entity"
)

func TestSyncService_ChangedSinceSync(t *testing.T) {
	srv := newTestServer(t)
	app := newTestApp(t, srv, 1)
	svc := app.GetSyncService()
	ctx := context.Background()
	require.NoError(t, app.CreateProject(ctx, "Novel"))

	// До первой синхронизации снимка нет
	assert.True(t, svc.changedSinceSync(ctx, "Novel"))

	_, err := app.Sync(ctx, "Novel", projectsync.Callbacks{})
	require.NoError(t, err)
	assert.False(t, svc.changedSinceSync(ctx, "Novel"))

	rec, err := app.PutEntity(ctx, "Novel", &entity.TimelineEvent{Content: "war begins"})
	require.NoError(t, err)
	assert.True(t, svc.changedSinceSync(ctx, "Novel"))

	_, err = app.Sync(ctx, "Novel", projectsync.Callbacks{})
	require.NoError(t, err)
	assert.False(t, svc.changedSinceSync(ctx, "Novel"))

	require.NoError(t, app.DeleteEntity(ctx, "Novel", rec.Entity.GetID()))
	assert.True(t, svc.changedSinceSync(ctx, "Novel"))
}

func TestSyncService_Stats(t *testing.T) {
	srv := newTestServer(t)
	app := newTestApp(t, srv, 1)
	svc := app.GetSyncService()
	ctx := context.Background()
	require.NoError(t, app.CreateProject(ctx, "Novel"))

	_, err := app.PutEntity(ctx, "Novel", &entity.TimelineEvent{Content: "war begins"})
	require.NoError(t, err)
	_, err = app.Sync(ctx, "Novel", projectsync.Callbacks{})
	require.NoError(t, err)

	stats := svc.GetStats()
	assert.Equal(t, 1, stats.TotalSyncs)
	assert.Equal(t, 1, stats.TotalUploaded)
	assert.False(t, stats.LastSuccessful.IsZero())

	// Статистика читается из файла при следующем запуске
	reloaded := NewSyncService(app)
	assert.Equal(t, stats.TotalUploaded, reloaded.GetStats().TotalUploaded)

	svc.ResetStats()
	assert.Zero(t, svc.GetStats().TotalSyncs)
	assert.False(t, svc.IsSyncing())
}

func TestSyncService_StartAutoSync(t *testing.T) {
	srv := newTestServer(t)
	app := newTestApp(t, srv, 1)
	other := newTestApp(t, srv, 1)
	svc := app.GetSyncService()
	require.NoError(t, app.CreateProject(context.Background(), "Novel"))
	require.NoError(t, other.CreateProject(context.Background(), "Novel"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.StartAutoSync(ctx, "Novel", projectsync.Callbacks{})
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		return svc.GetStats().TotalSyncs >= 1
	}, 5*time.Second, 20*time.Millisecond)

	_, err := app.PutEntity(context.Background(), "Novel", &entity.Scene{
		SceneType: entity.SceneTypeGroup,
		Name:      "Act I",
	})
	require.NoError(t, err)

	// Запись в базу запускает синхронизацию после задержки
	require.Eventually(t, func() bool {
		return svc.GetStats().TotalUploaded >= 1
	}, 5*time.Second, 20*time.Millisecond)

	res, err := other.Sync(context.Background(), "Novel", projectsync.Callbacks{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Downloaded)
}
