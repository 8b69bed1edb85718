package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, typ := range Types {
		t.Run(string(typ), func(t *testing.T) {
			e, err := New(typ)
			require.NoError(t, err)
			assert.Equal(t, typ, e.GetType())
		})
	}

	_, err := New(Type("chapter"))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecode(t *testing.T) {
	e, err := Decode(TypeScene, []byte(`{"id":7,"sceneType":"group","name":"Act I","order":2,"path":[0],"content":""}`))
	require.NoError(t, err)

	scene, err := As[*Scene](e)
	require.NoError(t, err)
	assert.Equal(t, 7, scene.ID)
	assert.Equal(t, SceneTypeGroup, scene.SceneType)
	assert.Equal(t, []int{0}, scene.Path)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode(TypeNote, []byte(`{"id":`))
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestAs_WrongType(t *testing.T) {
	_, err := As[*Note](&Scene{ID: 1})
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("timeline_event")
	require.NoError(t, err)
	assert.Equal(t, TypeTimelineEvent, typ)

	_, err = ParseType("")
	assert.ErrorIs(t, err, ErrUnknownType)
}
