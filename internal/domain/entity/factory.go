package entity

import (
	"encoding/json"
	"fmt"
)

// New создает пустую сущность указанного типа
func New(t Type) (Entity, error) {
	switch t {
	case TypeScene:
		return &Scene{}, nil
	case TypeNote:
		return &Note{}, nil
	case TypeTimelineEvent:
		return &TimelineEvent{}, nil
	case TypeEncyclopediaEntry:
		return &EncyclopediaEntry{}, nil
	case TypeSceneDraft:
		return &SceneDraft{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
	}
}

// Decode разбирает JSON сущности указанного типа
func Decode(t Type, data []byte) (Entity, error) {
	e, err := New(t)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidEntity, t, err)
	}

	return e, nil
}

// Encode сериализует сущность в JSON
func Encode(e Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s %d: %w", e.GetType(), e.GetID(), err)
	}
	return data, nil
}

// As приводит сущность к конкретному типу
func As[T Entity](e Entity) (T, error) {
	typed, ok := e.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: unexpected %s entity %d", ErrInvalidEntity, e.GetType(), e.GetID())
	}
	return typed, nil
}
