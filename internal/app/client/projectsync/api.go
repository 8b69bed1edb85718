// Package projectsync - клиентская синхронизация проекта с сервером
package projectsync

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
)

// ServerAPI - операции сервера, которыми пользуется синхронизация.
// UploadEntity возвращает *sync.EntityConflictError при конфликте,
// DownloadEntity возвращает modified=false, если у клиента уже актуальная версия.
type ServerAPI interface {
	BeginSync(ctx context.Context, project string, state *entity.ClientEntityState, lite bool) (*sync.SyncBegan, error)
	EndSync(ctx context.Context, project, syncID string, lastSync *time.Time, lastID *int) error
	AbortSync(ctx context.Context, project, syncID string) error
	UploadEntity(ctx context.Context, project, syncID string, e entity.Entity, originalHash string, force bool) (string, error)
	DownloadEntity(ctx context.Context, project, syncID string, id int, localHash string) (e entity.Entity, modified bool, err error)
	DeleteEntity(ctx context.Context, project, syncID string, id int) (bool, error)
}

// IsNetworkError сообщает, что сервер недоступен, а не ответил ошибкой
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
