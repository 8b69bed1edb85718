package sync

import (
	"time"

	"hammer/internal/domain/entity"
)

const (
	HeaderSyncID       = "X-Sync-Id"
	HeaderOriginalHash = "X-Original-Hash"
	HeaderEntityType   = "X-Entity-Type"
	HeaderEntityHash   = "X-Entity-Hash"
)

// SyncBegan - ответ begin_sync
type SyncBegan struct {
	SyncID      string              `json:"syncId" doc:"Идентификатор сессии синхронизации"`
	LastSync    time.Time           `json:"lastSync" doc:"Время последней завершенной синхронизации"`
	LastID      int                 `json:"lastId" doc:"Последний выданный id сущности"`
	IDSequence  []int               `json:"idSequence" doc:"Сущности, которые клиенту нужно скачать"`
	ServerState []entity.EntityHash `json:"serverState" doc:"Хэши всех сущностей на сервере"`
	DeletedIDs  []int               `json:"deletedIds" doc:"Сущности, удаленные на сервере"`
}

type SaveEntityResponse struct {
	NewHash string `json:"newHash"`
}

type DeleteEntityResponse struct {
	Deleted bool `json:"deleted"`
}

// ErrorResponse - тело ответа об ошибке
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
