package project

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

const basePath = "/project/{userId}/{projectName}"

var security = []map[string][]string{{"bearer": {}}}

func (h *Handler) beginSyncOp() huma.Operation {
	return huma.Operation{
		OperationID: "project-begin-sync",
		Method:      http.MethodPost,
		Path:        basePath + "/begin_sync",
		Summary:     "Начать синхронизацию проекта",
		Description: "Тело - gzip JSON состояния клиента, может быть пустым.",
		Tags:        []string{"project"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) endSyncOp() huma.Operation {
	return huma.Operation{
		OperationID: "project-end-sync",
		Method:      http.MethodGet,
		Path:        basePath + "/end_sync",
		Summary:     "Завершить синхронизацию проекта",
		Tags:        []string{"project"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) abortSyncOp() huma.Operation {
	return huma.Operation{
		OperationID: "project-abort-sync",
		Method:      http.MethodGet,
		Path:        basePath + "/abort_sync",
		Summary:     "Прервать синхронизацию проекта",
		Description: "Освобождает сессию, baseline остается от последнего end_sync.",
		Tags:        []string{"project"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) uploadEntityOp() huma.Operation {
	return huma.Operation{
		OperationID: "project-upload-entity",
		Method:      http.MethodPost,
		Path:        basePath + "/upload_entity/{entityId}",
		Summary:     "Загрузить сущность на сервер",
		Description: "При конфликте возвращает 409 с серверной версией сущности.",
		Tags:        []string{"project"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) downloadEntityOp() huma.Operation {
	return huma.Operation{
		OperationID: "project-download-entity",
		Method:      http.MethodGet,
		Path:        basePath + "/download_entity/{entityId}",
		Summary:     "Скачать сущность",
		Description: "Возвращает 304, если хэш клиента совпадает с серверным.",
		Tags:        []string{"project"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteEntityOp() huma.Operation {
	return huma.Operation{
		OperationID: "project-delete-entity",
		Method:      http.MethodGet,
		Path:        basePath + "/delete_entity/{entityId}",
		Summary:     "Удалить сущность",
		Tags:        []string{"project"},
		Security:    security,
		Middlewares: h.middleware,
	}
}
