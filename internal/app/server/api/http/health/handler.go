package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"hammer/internal/app/server/api/http/apierr"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	log        *slog.Logger
	middleware huma.Middlewares
	storage    Pinger
}

// NewHandler создает обработчик. storage может быть nil, тогда хранилище не проверяется.
func NewHandler(log *slog.Logger, middleware huma.Middlewares, storage Pinger) *Handler {
	return &Handler{
		log:        log,
		middleware: middleware,
		storage:    storage,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	out := &Output{Body: Response{Status: "OK"}}
	if h.storage == nil {
		return out, nil
	}

	if err := h.storage.Ping(ctx); err != nil {
		h.log.Error("storage ping failed", slog.Any("error", err))
		return nil, apierr.New(http.StatusServiceUnavailable, "Service Unavailable", "storage is unreachable")
	}
	out.Body.Storage = "OK"
	return out, nil
}
