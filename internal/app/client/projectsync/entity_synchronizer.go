package projectsync

import (
	"context"
	"errors"
	"fmt"

	"hammer/internal/app/client/store"
	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
)

// typeSynchronizer - проход синхронизации одного типа, без параметра типа
type typeSynchronizer interface {
	Type() entity.Type
	sync(ctx context.Context, p *pass) error
	resolve(ctx context.Context, project, syncID string, chosen entity.Entity, serverHash string) error
}

// EntitySynchronizer синхронизирует сущности одного типа
type EntitySynchronizer[T entity.Entity] struct {
	typ   entity.Type
	api   ServerAPI
	store store.Store
}

func NewEntitySynchronizer[T entity.Entity](t entity.Type, api ServerAPI, st store.Store) *EntitySynchronizer[T] {
	return &EntitySynchronizer[T]{typ: t, api: api, store: st}
}

func (s *EntitySynchronizer[T]) Type() entity.Type {
	return s.typ
}

func (s *EntitySynchronizer[T]) Serialize(e T) ([]byte, error) {
	return entity.Encode(e)
}

func (s *EntitySynchronizer[T]) Deserialize(data []byte) (T, error) {
	e, err := entity.Decode(s.typ, data)
	if err != nil {
		var zero T
		return zero, err
	}
	return entity.As[T](e)
}

func (s *EntitySynchronizer[T]) ComputeHash(e T) string {
	return entity.Hash(e)
}

// ListLocal возвращает локальные сущности этого типа
func (s *EntitySynchronizer[T]) ListLocal(ctx context.Context, project string) ([]store.Record, error) {
	return s.store.ListEntities(ctx, project, s.typ)
}

// LoadLocal возвращает локальную сущность и ее учетную запись
func (s *EntitySynchronizer[T]) LoadLocal(ctx context.Context, project string, id int) (T, *store.Record, error) {
	var zero T
	rec, err := s.store.LoadEntity(ctx, project, id)
	if err != nil {
		return zero, nil, err
	}
	e, err := entity.As[T](rec.Entity)
	if err != nil {
		return zero, nil, err
	}
	return e, rec, nil
}

// PersistLocal сохраняет сущность с хэшем, который известен серверу
func (s *EntitySynchronizer[T]) PersistLocal(ctx context.Context, project string, e T, syncedHash string) error {
	return s.store.MarkSynced(ctx, project, e, syncedHash)
}

func (s *EntitySynchronizer[T]) DeleteLocal(ctx context.Context, project string, id int) error {
	return s.store.RemoveEntity(ctx, project, id)
}

// Upload выгружает локальную сущность и возвращает новый серверный хэш.
// При конфликте возвращается *sync.EntityConflictError.
func (s *EntitySynchronizer[T]) Upload(ctx context.Context, project, syncID string, id int, originalHash string, force bool) (string, error) {
	e, _, err := s.LoadLocal(ctx, project, id)
	if err != nil {
		return "", err
	}

	hash, err := s.api.UploadEntity(ctx, project, syncID, e, originalHash, force)
	if err != nil {
		return "", err
	}
	if err := s.PersistLocal(ctx, project, e, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// Download скачивает серверную версию. При modified=false локальная копия актуальна и не перезаписывается.
func (s *EntitySynchronizer[T]) Download(ctx context.Context, project, syncID string, id int, localHash string) (T, bool, error) {
	var zero T

	e, modified, err := s.api.DownloadEntity(ctx, project, syncID, id, localHash)
	if err != nil {
		return zero, false, err
	}
	if !modified {
		local, _, err := s.LoadLocal(ctx, project, id)
		if err != nil {
			return zero, false, err
		}
		return local, false, s.PersistLocal(ctx, project, local, localHash)
	}

	typed, err := entity.As[T](e)
	if err != nil {
		return zero, false, err
	}
	if err := s.PersistLocal(ctx, project, typed, s.ComputeHash(typed)); err != nil {
		return zero, false, err
	}
	return typed, true, nil
}

func (s *EntitySynchronizer[T]) sync(ctx context.Context, p *pass) error {
	records, err := s.ListLocal(ctx, p.project)
	if err != nil {
		return fmt.Errorf("failed to list local %s: %w", s.typ, err)
	}

	local := make(map[int]string, len(records))
	byID := make(map[int]store.Record, len(records))
	for _, r := range records {
		local[r.Entity.GetID()] = r.Hash
		byID[r.Entity.GetID()] = r
	}
	server := p.serverHashes(s.typ)

	delta := ComputeDelta(local, server, p.localDeleted[s.typ], p.serverDeleted)
	total := len(delta.ToUpload) + len(delta.ToDownload) + len(delta.ToDeleteLocally) + len(delta.ToDeleteRemotely)
	done := 0
	step := func() {
		done++
		p.progress(done, total)
	}

	skipped := make(map[int]bool)

	for _, id := range delta.ToUpload {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := byID[id]
		if _, onServer := server[id]; onServer && !rec.Modified() {
			// правка только на сервере, ее заберет загрузка
			step()
			continue
		}

		hash, err := s.Upload(ctx, p.project, p.syncID, id, rec.SyncedHash, false)
		var conflict *sync.EntityConflictError
		switch {
		case errors.As(err, &conflict):
			skipped[id] = true
			if err := p.conflict(ctx, s, conflict.Entity, rec.Entity); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("failed to upload %s %d: %w", s.typ, id, err)
		default:
			local[id] = hash
			p.result.Uploaded++
			p.log(LogInfo, "Uploaded %s %d", s.typ, id)
		}
		step()
	}

	for _, id := range delta.ToDownload {
		if err := ctx.Err(); err != nil {
			return err
		}
		if skipped[id] {
			step()
			continue
		}

		_, modified, err := s.Download(ctx, p.project, p.syncID, id, local[id])
		switch {
		case errors.Is(err, sync.ErrEntityNotFound):
			p.log(LogWarn, "%s %d disappeared from server during sync", s.typ, id)
		case err != nil:
			return fmt.Errorf("failed to download %s %d: %w", s.typ, id, err)
		case modified:
			p.result.Downloaded++
			p.log(LogInfo, "Downloaded %s %d", s.typ, id)
		}
		step()
	}

	for _, id := range delta.ToDeleteLocally {
		if err := s.DeleteLocal(ctx, p.project, id); err != nil {
			return fmt.Errorf("failed to delete local %s %d: %w", s.typ, id, err)
		}
		p.result.DeletedLocally++
		p.log(LogInfo, "Deleted local %s %d", s.typ, id)
		step()
	}

	for _, id := range delta.ToDeleteRemotely {
		if err := ctx.Err(); err != nil {
			return err
		}
		deleted, err := s.api.DeleteEntity(ctx, p.project, p.syncID, id)
		if err != nil {
			return fmt.Errorf("failed to delete %s %d on server: %w", s.typ, id, err)
		}
		if deleted {
			p.result.DeletedRemotely++
			p.log(LogInfo, "Deleted %s %d on server", s.typ, id)
		}
		if err := s.store.ClearPendingDeletion(ctx, p.project, id); err != nil {
			return err
		}
		step()
	}

	// Удаления, которых сервер уже не знает, считаются доставленными
	for _, id := range p.localDeleted[s.typ] {
		if _, ok := server[id]; ok {
			continue
		}
		if err := s.store.ClearPendingDeletion(ctx, p.project, id); err != nil {
			return err
		}
	}

	return nil
}

// resolve применяет выбор пользователя: серверная копия сохраняется локально,
// любая другая версия выгружается с force
func (s *EntitySynchronizer[T]) resolve(ctx context.Context, project, syncID string, chosen entity.Entity, serverHash string) error {
	e, err := entity.As[T](chosen)
	if err != nil {
		return err
	}

	if s.ComputeHash(e) == serverHash {
		return s.PersistLocal(ctx, project, e, serverHash)
	}

	hash, err := s.api.UploadEntity(ctx, project, syncID, e, serverHash, true)
	if err != nil {
		return fmt.Errorf("failed to force upload %s %d: %w", s.typ, e.GetID(), err)
	}
	return s.PersistLocal(ctx, project, e, hash)
}
