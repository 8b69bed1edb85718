package entity

import "errors"

var (
	ErrUnknownType   = errors.New("unknown entity type")
	ErrInvalidEntity = errors.New("invalid entity")
	ErrInvalidState  = errors.New("invalid client entity state")
)
