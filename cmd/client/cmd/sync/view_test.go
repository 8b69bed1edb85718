package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hammer/internal/app/client/projectsync"
	"hammer/internal/domain/entity"
)

func TestPick(t *testing.T) {
	server := &entity.Note{ID: 1, Content: "server"}
	local := &entity.Note{ID: 1, Content: "local"}
	c := projectsync.EntityConflict{Type: entity.TypeNote, Server: server, Client: local}

	tests := []struct {
		prefer string
		want   entity.Entity
		ok     bool
	}{
		{preferLocal, local, true},
		{preferServer, server, true},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.prefer, func(t *testing.T) {
			got, ok := pick(tt.prefer, c)
			assert.Equal(t, tt.ok, ok)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Same(t, tt.want, got)
		})
	}
}
