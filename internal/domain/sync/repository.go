package sync

import (
	"context"

	"hammer/internal/domain/entity"
)

// Repository - хранилище сущностей проектов на сервере
type Repository interface {
	ListEntityHashes(ctx context.Context, userID int, project string) ([]entity.EntityHash, error)
	// LoadEntity возвращает ErrEntityNotFound, если сущности нет
	LoadEntity(ctx context.Context, userID int, project string, id int) (*StoredEntity, error)
	// InsertEntity возвращает false, если сущность с таким id уже существует
	InsertEntity(ctx context.Context, userID int, project string, e *StoredEntity) (bool, error)
	// UpdateEntity пишет сущность только если текущий хэш равен expectedHash
	UpdateEntity(ctx context.Context, userID int, project string, e *StoredEntity, expectedHash string) (bool, error)
	UpsertEntity(ctx context.Context, userID int, project string, e *StoredEntity) error
	// DeleteEntity возвращает false, если удалять было нечего
	DeleteEntity(ctx context.Context, userID int, project string, id int) (bool, error)
	ListDeletedIDs(ctx context.Context, userID int, project string) ([]int, error)
	LoadSyncData(ctx context.Context, userID int, project string) (*SyncData, error)
	// SaveSyncData сохраняет данные синхронизации и новый baseline атомарно
	SaveSyncData(ctx context.Context, userID int, project string, data *SyncData, baseline []entity.EntityHash) error
	// LoadBaseline возвращает хэши, зафиксированные последним end_sync
	LoadBaseline(ctx context.Context, userID int, project string) (map[int]string, error)
}
