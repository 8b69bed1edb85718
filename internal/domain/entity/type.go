package entity

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// Type тип синхронизируемой сущности проекта
type Type string

const (
	TypeScene             Type = "scene"
	TypeNote              Type = "note"
	TypeTimelineEvent     Type = "timeline_event"
	TypeEncyclopediaEntry Type = "encyclopedia_entry"
	TypeSceneDraft        Type = "scene_draft"
)

// Types задает фиксированный порядок синхронизации типов.
var Types = []Type{
	TypeScene,
	TypeNote,
	TypeTimelineEvent,
	TypeEncyclopediaEntry,
	TypeSceneDraft,
}

// ParseType разбирает тип из заголовка X-Entity-Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (Type) Schema(_ huma.Registry) *huma.Schema {
	enum := make([]any, 0, len(Types))
	for _, t := range Types {
		enum = append(enum, string(t))
	}
	return &huma.Schema{
		Type:        huma.TypeString,
		Enum:        enum,
		Description: "Тип сущности проекта",
		Examples:    []any{string(TypeScene)},
	}
}

// Validate реализует интерфейс huma.Validatable.
func (t Type) Validate() error {
	switch t {
	case TypeScene, TypeNote, TypeTimelineEvent, TypeEncyclopediaEntry, TypeSceneDraft:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownType, string(t))
}

func (t Type) String() string {
	return string(t)
}

// DisplayName возвращает человекочитаемое название типа.
func (t Type) DisplayName() string {
	switch t {
	case TypeScene:
		return "Сцена"
	case TypeNote:
		return "Заметка"
	case TypeTimelineEvent:
		return "Событие таймлайна"
	case TypeEncyclopediaEntry:
		return "Статья энциклопедии"
	case TypeSceneDraft:
		return "Черновик сцены"
	default:
		return "Неизвестный тип"
	}
}
