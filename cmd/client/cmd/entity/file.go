package entity

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"hammer/internal/domain/entity"
)

// entityFile - YAML-представление сущности для put и show
//
//	type: scene
//	data:
//	  name: Opening
//	  sceneType: scene
type entityFile struct {
	Type string    `yaml:"type"`
	Data yaml.Node `yaml:"data"`
}

// Encode сериализует сущность в YAML-документ с типом
func Encode(e entity.Entity) ([]byte, error) {
	var data yaml.Node
	if err := data.Encode(e); err != nil {
		return nil, fmt.Errorf("ошибка сериализации %s %d: %w", e.GetType(), e.GetID(), err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(entityFile{Type: e.GetType().String(), Data: data}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode разбирает YAML-документ с типом и данными сущности
func Decode(raw []byte) (entity.Entity, error) {
	var file entityFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("ошибка разбора YAML: %w", err)
	}

	t, err := entity.ParseType(strings.TrimSpace(file.Type))
	if err != nil {
		return nil, err
	}
	e, err := entity.New(t)
	if err != nil {
		return nil, err
	}
	if file.Data.Kind == 0 {
		return nil, fmt.Errorf("%w: поле data пустое", entity.ErrInvalidEntity)
	}
	if err := file.Data.Decode(e); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidEntity, err)
	}
	return e, nil
}

// Title - короткая подпись сущности для списков
func Title(e entity.Entity) string {
	switch v := e.(type) {
	case *entity.Scene:
		return v.Name
	case *entity.Note:
		return shorten(v.Content)
	case *entity.TimelineEvent:
		if v.Date != "" {
			return v.Date + ": " + shorten(v.Content)
		}
		return shorten(v.Content)
	case *entity.EncyclopediaEntry:
		return v.Name
	case *entity.SceneDraft:
		return v.Name
	}
	return ""
}

func shorten(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > 48 {
		return string(r[:47]) + "…"
	}
	return s
}
