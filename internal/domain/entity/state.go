package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/gzip"
)

// EntityHash - идентификатор и хэш сущности без содержимого
type EntityHash struct {
	ID   int    `json:"id"`
	Type Type   `json:"type"`
	Hash string `json:"hash"`
}

// ClientEntityState - снимок локального проекта, отправляемый в begin_sync
type ClientEntityState struct {
	Entities   []EntityHash   `json:"entities"`
	DeletedIDs map[Type][]int `json:"deletedIds,omitempty"`
}

// HashesOf возвращает хэши сущностей указанного типа по id
func (s *ClientEntityState) HashesOf(t Type) map[int]string {
	out := make(map[int]string)
	if s == nil {
		return out
	}
	for _, e := range s.Entities {
		if e.Type == t {
			out[e.ID] = e.Hash
		}
	}
	return out
}

// Sort упорядочивает снимок по типу и id
func (s *ClientEntityState) Sort() {
	sort.Slice(s.Entities, func(i, j int) bool {
		if s.Entities[i].Type != s.Entities[j].Type {
			return s.Entities[i].Type < s.Entities[j].Type
		}
		return s.Entities[i].ID < s.Entities[j].ID
	})
	for _, ids := range s.DeletedIDs {
		sort.Ints(ids)
	}
}

// EncodeClientState сериализует снимок в JSON и сжимает gzip
func EncodeClientState(state *ClientEntityState) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client state: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress client state: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress client state: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeClientState распаковывает снимок. Пустое тело означает отсутствие снимка.
func DecodeClientState(data []byte) (*ClientEntityState, error) {
	if len(data) == 0 {
		return nil, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not gzip: %v", ErrInvalidState, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decompress: %v", ErrInvalidState, err)
	}

	var state ClientEntityState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: failed to parse: %v", ErrInvalidState, err)
	}

	for _, e := range state.Entities {
		if err := e.Type.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entity %d: %v", ErrInvalidState, e.ID, err)
		}
	}

	return &state, nil
}
