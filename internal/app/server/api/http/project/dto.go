package project

import (
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"hammer/internal/domain/sync"
)

// Максимальный размер тела запроса
const (
	maxStateBytes  = 32 << 20
	maxEntityBytes = 16 << 20
	maxFormBytes   = 64 << 10
)

type ProjectPath struct {
	UserID      int    `path:"userId" doc:"Идентификатор пользователя"`
	ProjectName string `path:"projectName" doc:"Имя проекта"`
}

type beginSyncInput struct {
	ProjectPath
	Lite bool `query:"lite" doc:"Облегченная синхронизация без сравнения состояний"`

	state []byte
}

// Resolve читает сырое тело: gzip JSON состояния клиента или пустое тело
func (i *beginSyncInput) Resolve(ctx huma.Context) []error {
	body, err := readBody(ctx, maxStateBytes)
	if err != nil {
		return []error{err}
	}
	i.state = body
	return nil
}

type beginSyncOutput struct {
	Body *sync.SyncBegan
}

type endSyncInput struct {
	ProjectPath
	SyncID string `header:"X-Sync-Id" required:"true" doc:"Идентификатор сессии синхронизации"`

	lastSync *time.Time
	lastID   *int
}

// Resolve разбирает form-тело с полями lastSync и lastId. Некорректные значения игнорируются.
func (i *endSyncInput) Resolve(ctx huma.Context) []error {
	body, err := readBody(ctx, maxFormBytes)
	if err != nil {
		return []error{err}
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return []error{&huma.ErrorDetail{Location: "body", Message: "malformed form body"}}
	}

	if v := form.Get("lastSync"); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			i.lastSync = &t
		}
	}
	if v := form.Get("lastId"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			i.lastID = &id
		}
	}
	return nil
}

type endSyncOutput struct {
	Body bool
}

type abortSyncInput struct {
	ProjectPath
	SyncID string `header:"X-Sync-Id" required:"true" doc:"Идентификатор сессии синхронизации"`
}

type abortSyncOutput struct {
	Body bool
}

type uploadEntityInput struct {
	ProjectPath
	EntityID     int    `path:"entityId" doc:"Идентификатор сущности"`
	SyncID       string `header:"X-Sync-Id" required:"true"`
	OriginalHash string `header:"X-Original-Hash" doc:"Хэш версии, на которой основана правка"`
	EntityType   string `header:"X-Entity-Type" required:"true" enum:"scene,note,timeline_event,encyclopedia_entry,scene_draft"`
	Force        bool   `query:"force" doc:"Перезаписать без проверки конфликтов"`

	raw []byte
}

func (i *uploadEntityInput) Resolve(ctx huma.Context) []error {
	body, err := readBody(ctx, maxEntityBytes)
	if err != nil {
		return []error{err}
	}
	if len(body) == 0 {
		return []error{&huma.ErrorDetail{Location: "body", Message: "entity body is required"}}
	}
	i.raw = body
	return nil
}

type uploadEntityOutput struct {
	Body sync.SaveEntityResponse
}

type downloadEntityInput struct {
	ProjectPath
	EntityID   int    `path:"entityId"`
	SyncID     string `header:"X-Sync-Id" required:"true"`
	EntityHash string `header:"X-Entity-Hash" doc:"Хэш локальной версии клиента"`
}

type deleteEntityInput struct {
	ProjectPath
	EntityID int    `path:"entityId"`
	SyncID   string `header:"X-Sync-Id" required:"true"`
}

type deleteEntityOutput struct {
	Body sync.DeleteEntityResponse
}

// readBody читает тело запроса не длиннее limit. Запрос без тела дает nil.
func readBody(ctx huma.Context, limit int64) ([]byte, error) {
	r := ctx.BodyReader()
	if r == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, &huma.ErrorDetail{Location: "body", Message: "failed to read body"}
	}
	if int64(len(body)) > limit {
		return nil, &huma.ErrorDetail{Location: "body", Message: "body is too large"}
	}
	return body, nil
}
