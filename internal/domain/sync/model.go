package sync

import (
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"hammer/internal/domain/entity"
)

const MaxProjectNameLength = 128

var projectNamePattern = regexp.MustCompile(`^[\p{L}\p{N} _.\-]+$`)

// StoredEntity - сущность в том виде, в котором она лежит в хранилище
type StoredEntity struct {
	ID        int
	Type      entity.Type
	Hash      string
	Payload   []byte
	UpdatedAt time.Time
}

// NewStoredEntity сериализует сущность и считает ее хэш
func NewStoredEntity(e entity.Entity) (*StoredEntity, error) {
	payload, err := entity.Encode(e)
	if err != nil {
		return nil, err
	}

	return &StoredEntity{
		ID:      e.GetID(),
		Type:    e.GetType(),
		Hash:    entity.Hash(e),
		Payload: payload,
	}, nil
}

// Decode восстанавливает доменную сущность
func (s *StoredEntity) Decode() (entity.Entity, error) {
	e, err := entity.Decode(s.Type, s.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored %s %d: %w", s.Type, s.ID, err)
	}
	return e, nil
}

// SyncData - данные последней завершенной синхронизации проекта
type SyncData struct {
	LastSync time.Time
	LastID   int
}

type projectKey struct {
	userID  int
	project string
}

// ValidateProjectName проверяет имя проекта из пути запроса
func ValidateProjectName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, MaxProjectNameLength),
		validation.Match(projectNamePattern),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	return nil
}
