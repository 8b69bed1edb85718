// Package store - локальное хранилище проектов клиента
package store

import (
	"context"
	"errors"
	"time"

	"hammer/internal/domain/entity"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project already exists")
	ErrEntityNotFound  = errors.New("entity not found")
)

// Project - локальный проект и его данные синхронизации
type Project struct {
	Name     string
	LastSync *time.Time
	LastID   int
}

// Record - сущность вместе с хэшами.
// SyncedHash - хэш версии, которую сервер видел при последней синхронизации, пустой для новых сущностей.
type Record struct {
	Entity     entity.Entity
	Hash       string
	SyncedHash string
	UpdatedAt  time.Time
}

// Modified сообщает, изменилась ли сущность после последней синхронизации
func (r *Record) Modified() bool {
	return r.SyncedHash == "" || r.SyncedHash != r.Hash
}

// Store хранит сущности проектов и учет синхронизации
type Store interface {
	CreateProject(ctx context.Context, name string) error
	GetProject(ctx context.Context, name string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)

	// ListEntities возвращает сущности проекта, пустой тип означает все типы
	ListEntities(ctx context.Context, project string, t entity.Type) ([]Record, error)
	LoadEntity(ctx context.Context, project string, id int) (*Record, error)

	// PutEntity сохраняет локальную правку, хэш последней синхронизации не меняется
	PutEntity(ctx context.Context, project string, e entity.Entity) (*Record, error)

	// MarkSynced сохраняет сущность и запоминает хэш, известный серверу
	MarkSynced(ctx context.Context, project string, e entity.Entity, syncedHash string) error

	// RemoveEntity удаляет сущность по решению синхронизации, без записи в очередь удалений
	RemoveEntity(ctx context.Context, project string, id int) error

	// DeleteEntity удаляет сущность по команде пользователя.
	// Если сервер уже знает сущность, id попадает в очередь удалений.
	DeleteEntity(ctx context.Context, project string, id int) error

	PendingDeletions(ctx context.Context, project string) (map[entity.Type][]int, error)
	ClearPendingDeletion(ctx context.Context, project string, id int) error

	// NextID выделяет следующий id из общей последовательности проекта
	NextID(ctx context.Context, project string) (int, error)
	SaveSyncData(ctx context.Context, project string, lastSync time.Time, lastID int) error

	Close() error
}
