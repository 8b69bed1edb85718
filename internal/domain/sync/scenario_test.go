package sync_test

import (
	"context"
	"io"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
	"hammer/internal/infrastructure/storage/memory"
)

const (
	userID  = 1
	project = "novel"
)

func newService() (*sync.Service, *memory.SyncRepository) {
	repo := memory.NewSyncRepository()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sync.NewService(repo, log, nil), repo
}

func scene(id int, content string) *entity.Scene {
	return &entity.Scene{ID: id, SceneType: entity.SceneTypeScene, Name: "Scene", Path: []int{0}, Content: content}
}

func note(id int, content string) *entity.Note {
	return &entity.Note{ID: id, Created: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Content: content}
}

func TestScenario_FirstSync(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()

	began, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)
	assert.Empty(t, began.IDSequence)
	assert.Empty(t, began.ServerState)

	s1 := scene(1, "It was a dark and stormy night")
	hash, err := svc.SaveEntity(ctx, userID, project, s1, nil, began.SyncID, false)
	require.NoError(t, err)
	assert.Equal(t, entity.Hash(s1), hash)

	require.NoError(t, svc.EndProjectSync(ctx, userID, project, began.SyncID, nil, nil))
	baseline, err := repo.LoadBaseline(ctx, userID, project)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: hash}, baseline)

	state := &entity.ClientEntityState{Entities: []entity.EntityHash{{ID: 1, Type: entity.TypeScene, Hash: hash}}}
	again, err := svc.BeginProjectSync(ctx, userID, project, state, false)
	require.NoError(t, err)
	assert.Empty(t, again.IDSequence)
	assert.Equal(t, 1, again.LastID)
	assert.False(t, again.LastSync.IsZero())
}

func TestScenario_LocalSceneEdit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	first, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)
	original, err := svc.SaveEntity(ctx, userID, project, scene(1, "draft"), nil, first.SyncID, false)
	require.NoError(t, err)
	require.NoError(t, svc.EndProjectSync(ctx, userID, project, first.SyncID, nil, nil))

	edited := scene(1, "final")
	state := &entity.ClientEntityState{Entities: []entity.EntityHash{{ID: 1, Type: entity.TypeScene, Hash: entity.Hash(edited)}}}
	began, err := svc.BeginProjectSync(ctx, userID, project, state, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, began.IDSequence)

	hash, err := svc.SaveEntity(ctx, userID, project, edited, &original, began.SyncID, false)
	require.NoError(t, err)
	assert.Equal(t, entity.Hash(edited), hash)

	got, err := svc.LoadEntity(ctx, userID, project, 1, began.SyncID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.(*entity.Scene).Content)
}

func TestScenario_RemoteNoteEdit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	// Другой клиент создает и меняет заметку
	other, err := svc.BeginProjectSync(ctx, userID, project, nil, true)
	require.NoError(t, err)
	v1, err := svc.SaveEntity(ctx, userID, project, note(5, "v1"), nil, other.SyncID, false)
	require.NoError(t, err)
	_, err = svc.SaveEntity(ctx, userID, project, note(5, "v2"), &v1, other.SyncID, false)
	require.NoError(t, err)
	require.NoError(t, svc.EndProjectSync(ctx, userID, project, other.SyncID, nil, nil))

	state := &entity.ClientEntityState{Entities: []entity.EntityHash{{ID: 5, Type: entity.TypeNote, Hash: v1}}}
	began, err := svc.BeginProjectSync(ctx, userID, project, state, false)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, began.IDSequence)

	got, err := svc.LoadEntity(ctx, userID, project, 5, began.SyncID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.(*entity.Note).Content)

	// Клиент пишет поверх устаревшей версии
	_, err = svc.SaveEntity(ctx, userID, project, note(5, "local"), &v1, began.SyncID, false)
	var conflict *sync.EntityConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "v2", conflict.Entity.(*entity.Note).Content)
}

func TestScenario_ConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	began, err := svc.BeginProjectSync(ctx, userID, project, nil, true)
	require.NoError(t, err)
	base, err := svc.SaveEntity(ctx, userID, project, note(2, "base"), nil, began.SyncID, false)
	require.NoError(t, err)

	var (
		wg        gosync.WaitGroup
		mu        gosync.Mutex
		successes int
		conflicts int
	)
	for _, content := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(content string) {
			defer wg.Done()
			_, err := svc.SaveEntity(ctx, userID, project, note(2, content), &base, began.SyncID, false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, sync.ErrConflict):
				conflicts++
			}
		}(content)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
}

func TestScenario_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	began, err := svc.BeginProjectSync(ctx, userID, project, nil, true)
	require.NoError(t, err)
	_, err = svc.SaveEntity(ctx, userID, project, note(3, "bye"), nil, began.SyncID, false)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEntity(ctx, userID, project, 3, began.SyncID))
	err = svc.DeleteEntity(ctx, userID, project, 3, began.SyncID)
	assert.ErrorIs(t, err, sync.ErrNoEntityTypeFound)

	_, err = svc.LoadEntity(ctx, userID, project, 3, began.SyncID)
	assert.ErrorIs(t, err, sync.ErrEntityNotFound)

	require.NoError(t, svc.EndProjectSync(ctx, userID, project, began.SyncID, nil, nil))
	next, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, next.DeletedIDs)
	assert.Equal(t, 3, next.LastID)

	// Повторное создание убирает id из списка удаленных
	_, err = svc.SaveEntity(ctx, userID, project, note(3, "back"), nil, next.SyncID, false)
	require.NoError(t, err)
	require.NoError(t, svc.EndProjectSync(ctx, userID, project, next.SyncID, nil, nil))
	last, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)
	assert.Empty(t, last.DeletedIDs)
}

func TestScenario_ForceOverwrite(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	began, err := svc.BeginProjectSync(ctx, userID, project, nil, true)
	require.NoError(t, err)
	_, err = svc.SaveEntity(ctx, userID, project, note(4, "server"), nil, began.SyncID, false)
	require.NoError(t, err)

	stale := "stale"
	_, err = svc.SaveEntity(ctx, userID, project, note(4, "client"), &stale, began.SyncID, false)
	require.ErrorIs(t, err, sync.ErrConflict)

	hash, err := svc.SaveEntity(ctx, userID, project, note(4, "client"), &stale, began.SyncID, true)
	require.NoError(t, err)
	assert.Equal(t, entity.Hash(note(4, "client")), hash)

	got, err := svc.LoadEntity(ctx, userID, project, 4, began.SyncID)
	require.NoError(t, err)
	assert.Equal(t, "client", got.(*entity.Note).Content)
}

func TestScenario_SupersededSessionRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	first, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)
	_, err = svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)

	_, err = svc.SaveEntity(ctx, userID, project, note(1, "late"), nil, first.SyncID, false)
	assert.ErrorIs(t, err, sync.ErrInvalidSyncSession)
	err = svc.EndProjectSync(ctx, userID, project, first.SyncID, nil, nil)
	assert.ErrorIs(t, err, sync.ErrInvalidSyncSession)
}

func TestScenario_EndKeepsClientLastID(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	began, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)

	lastSync := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	lastID := 42
	require.NoError(t, svc.EndProjectSync(ctx, userID, project, began.SyncID, &lastSync, &lastID))

	next, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 42, next.LastID)
	assert.True(t, lastSync.Equal(next.LastSync))
}

func TestScenario_ChangeBetweenSessionsComparesWithLastEnd(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()

	first, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)
	v1, err := svc.SaveEntity(ctx, userID, project, note(6, "v1"), nil, first.SyncID, false)
	require.NoError(t, err)
	require.NoError(t, svc.EndProjectSync(ctx, userID, project, first.SyncID, nil, nil))

	// Неудачная синхронизация другого устройства успевает записать v2 и закрывается без фиксации
	failed, err := svc.BeginProjectSync(ctx, userID, project, nil, true)
	require.NoError(t, err)
	v2, err := svc.SaveEntity(ctx, userID, project, note(6, "v2"), &v1, failed.SyncID, false)
	require.NoError(t, err)
	require.NoError(t, svc.AbortProjectSync(ctx, userID, project, failed.SyncID))

	baseline, err := repo.LoadBaseline(ctx, userID, project)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{6: v1}, baseline, "abort keeps the baseline of the last end_sync")

	began, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)

	// v2 отличается от baseline, а в этой сессии его никто не видел
	_, err = svc.SaveEntity(ctx, userID, project, note(6, "v3"), &v2, began.SyncID, false)
	var conflict *sync.EntityConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "v2", conflict.Entity.(*entity.Note).Content)

	// После чтения текущей версии запись проходит
	_, err = svc.LoadEntity(ctx, userID, project, 6, began.SyncID)
	require.NoError(t, err)
	v3, err := svc.SaveEntity(ctx, userID, project, note(6, "v3"), &v2, began.SyncID, false)
	require.NoError(t, err)
	require.NoError(t, svc.EndProjectSync(ctx, userID, project, began.SyncID, nil, nil))

	baseline, err = repo.LoadBaseline(ctx, userID, project)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{6: v3}, baseline)
}

func TestScenario_CommittedChangeIsNotAConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	first, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)
	v1, err := svc.SaveEntity(ctx, userID, project, note(7, "v1"), nil, first.SyncID, false)
	require.NoError(t, err)
	v2, err := svc.SaveEntity(ctx, userID, project, note(7, "v2"), &v1, first.SyncID, false)
	require.NoError(t, err)
	require.NoError(t, svc.EndProjectSync(ctx, userID, project, first.SyncID, nil, nil))

	began, err := svc.BeginProjectSync(ctx, userID, project, nil, false)
	require.NoError(t, err)
	_, err = svc.SaveEntity(ctx, userID, project, note(7, "v3"), &v2, began.SyncID, false)
	assert.NoError(t, err)
}
