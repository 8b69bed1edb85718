package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		entity  Entity
		wantErr bool
	}{
		{
			name:   "valid scene",
			entity: &Scene{ID: 1, SceneType: SceneTypeScene, Name: "A", Path: []int{0}},
		},
		{
			name:    "scene without name",
			entity:  &Scene{ID: 1, SceneType: SceneTypeScene},
			wantErr: true,
		},
		{
			name:    "scene with unknown scene type",
			entity:  &Scene{ID: 1, SceneType: "chapter", Name: "A"},
			wantErr: true,
		},
		{
			name:    "negative id",
			entity:  &Scene{ID: -1, SceneType: SceneTypeScene, Name: "A"},
			wantErr: true,
		},
		{
			name:   "valid note",
			entity: &Note{ID: 2, Created: now, Content: "x"},
		},
		{
			name:    "note without content",
			entity:  &Note{ID: 2, Created: now},
			wantErr: true,
		},
		{
			name:   "valid timeline event",
			entity: &TimelineEvent{ID: 3, Content: "x"},
		},
		{
			name:   "valid entry with image",
			entity: &EncyclopediaEntry{ID: 4, Name: "Bob", EntryType: EntryTypePerson, Image: &EntryImage{Base64: "AA", FileExtension: "jpg"}},
		},
		{
			name:    "entry with bad image",
			entity:  &EncyclopediaEntry{ID: 4, Name: "Bob", EntryType: EntryTypePerson, Image: &EntryImage{Base64: "AA", FileExtension: "gif"}},
			wantErr: true,
		},
		{
			name:    "entry with empty tag",
			entity:  &EncyclopediaEntry{ID: 4, Name: "Bob", EntryType: EntryTypePerson, Tags: []string{""}},
			wantErr: true,
		},
		{
			name:   "valid draft",
			entity: &SceneDraft{ID: 5, SceneID: 1, Name: "d1", Created: now},
		},
		{
			name:    "draft without created",
			entity:  &SceneDraft{ID: 5, SceneID: 1, Name: "d1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
