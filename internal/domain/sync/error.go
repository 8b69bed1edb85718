package sync

import (
	"errors"
	"fmt"

	"hammer/internal/domain/entity"
)

var (
	ErrEntityNotFound     = errors.New("entity not found")
	ErrNoEntityTypeFound  = errors.New("no entity of any known type has this id")
	ErrConflict           = errors.New("entity conflict")
	ErrInvalidSyncSession = errors.New("invalid sync session")
	ErrInvalidProject     = errors.New("invalid project name")
)

// EntityConflictError возвращается при провале оптимистичной проверки.
// Содержит текущую серверную версию сущности.
type EntityConflictError struct {
	Entity entity.Entity
}

func (e *EntityConflictError) Error() string {
	return fmt.Sprintf("entity conflict: %s %d", e.Entity.GetType(), e.Entity.GetID())
}

func (e *EntityConflictError) Is(target error) bool {
	return target == ErrConflict
}
