// Package apierr переводит доменные ошибки в HTTP-ответы вида {error, message}.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
)

// Error - тело ответа об ошибке
type Error struct {
	status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string  { return e.Message }
func (e *Error) GetStatus() int { return e.status }

func New(status int, code, message string) *Error {
	return &Error{status: status, Code: code, Message: message}
}

// NewError заменяет huma.NewError: ошибки валидации параметров отдаются как 400
func NewError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}

	details := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}
	if len(details) > 0 {
		msg = msg + ": " + strings.Join(details, "; ")
	}

	code := http.StatusText(status)
	if status == http.StatusBadRequest {
		code = "Missing Parameter"
	}
	return New(status, code, msg)
}

// ConflictError - ответ 409, тело которого является серверной версией сущности
type ConflictError struct {
	Entity entity.Entity
}

func (e *ConflictError) Error() string  { return "entity conflict" }
func (e *ConflictError) GetStatus() int { return http.StatusConflict }

func (e *ConflictError) GetHeaders() http.Header {
	h := http.Header{}
	h.Set(sync.HeaderEntityType, e.Entity.GetType().String())
	return h
}

func (e *ConflictError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Entity)
}

// FromDomain подбирает статус для доменной ошибки. fallback используется для прочих ошибок.
func FromDomain(err error, fallback *Error) huma.StatusError {
	var conflict *sync.EntityConflictError
	switch {
	case errors.As(err, &conflict):
		return &ConflictError{Entity: conflict.Entity}
	case errors.Is(err, sync.ErrConflict):
		return New(http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, sync.ErrInvalidSyncSession):
		return New(http.StatusBadRequest, "Invalid Sync Session", err.Error())
	case errors.Is(err, sync.ErrInvalidProject):
		return New(http.StatusBadRequest, "Invalid Parameter", err.Error())
	case errors.Is(err, entity.ErrInvalidEntity),
		errors.Is(err, entity.ErrUnknownType),
		errors.Is(err, entity.ErrInvalidState):
		return New(http.StatusBadRequest, "Invalid Entity", err.Error())
	case errors.Is(err, sync.ErrEntityNotFound), errors.Is(err, sync.ErrNoEntityTypeFound):
		return New(http.StatusNotFound, "Entity Not Found", err.Error())
	}
	if fallback != nil {
		return fallback
	}
	return New(http.StatusInternalServerError, "Internal Error", "Unexpected server error")
}

func BadRequest(code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "Unauthorized", message)
}
