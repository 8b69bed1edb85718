package project

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"hammer/internal/app/server/api/http/apierr"
	"hammer/internal/app/server/api/http/middleware/auth"
	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With(slog.String("component", "project handler")),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.beginSyncOp(), h.beginSync)
	huma.Register(api, h.endSyncOp(), h.endSync)
	huma.Register(api, h.abortSyncOp(), h.abortSync)
	huma.Register(api, h.uploadEntityOp(), h.uploadEntity)
	huma.Register(api, h.downloadEntityOp(), h.downloadEntity)
	huma.Register(api, h.deleteEntityOp(), h.deleteEntity)
}

// authorize сверяет пользователя из пути с владельцем токена
func (h *Handler) authorize(ctx context.Context, p ProjectPath) error {
	userID, ok := auth.GetUserID(ctx)
	if !ok || userID != p.UserID {
		return apierr.Unauthorized("Token does not belong to this user")
	}
	return nil
}

func (h *Handler) beginSync(ctx context.Context, input *beginSyncInput) (*beginSyncOutput, error) {
	if err := h.authorize(ctx, input.ProjectPath); err != nil {
		return nil, err
	}

	state, err := entity.DecodeClientState(input.state)
	if err != nil {
		return nil, apierr.BadRequest("Invalid Body", err.Error())
	}

	began, err := h.service.BeginProjectSync(ctx, input.UserID, input.ProjectName, state, input.Lite)
	if err != nil {
		h.log.Error("failed to begin sync", slog.String("project", input.ProjectName), slog.Any("error", err))
		return nil, apierr.FromDomain(err, apierr.BadRequest("Failed to begin sync", err.Error()))
	}

	return &beginSyncOutput{Body: began}, nil
}

func (h *Handler) endSync(ctx context.Context, input *endSyncInput) (*endSyncOutput, error) {
	if err := h.authorize(ctx, input.ProjectPath); err != nil {
		return nil, err
	}

	err := h.service.EndProjectSync(ctx, input.UserID, input.ProjectName, input.SyncID, input.lastSync, input.lastID)
	if err != nil {
		h.log.Error("failed to end sync", slog.String("project", input.ProjectName), slog.Any("error", err))
		return nil, apierr.FromDomain(err, apierr.BadRequest("Failed to end sync", err.Error()))
	}

	return &endSyncOutput{Body: true}, nil
}

func (h *Handler) abortSync(ctx context.Context, input *abortSyncInput) (*abortSyncOutput, error) {
	if err := h.authorize(ctx, input.ProjectPath); err != nil {
		return nil, err
	}

	if err := h.service.AbortProjectSync(ctx, input.UserID, input.ProjectName, input.SyncID); err != nil {
		return nil, apierr.FromDomain(err, apierr.BadRequest("Failed to abort sync", err.Error()))
	}
	return &abortSyncOutput{Body: true}, nil
}

func (h *Handler) uploadEntity(ctx context.Context, input *uploadEntityInput) (*uploadEntityOutput, error) {
	if err := h.authorize(ctx, input.ProjectPath); err != nil {
		return nil, err
	}

	typ, err := entity.ParseType(input.EntityType)
	if err != nil {
		return nil, apierr.BadRequest("Missing Header", "X-Entity-Type is invalid")
	}
	e, err := entity.Decode(typ, input.raw)
	if err != nil {
		return nil, apierr.BadRequest("Invalid Entity", err.Error())
	}
	if e.GetID() != input.EntityID {
		return nil, apierr.BadRequest("Invalid Entity",
			fmt.Sprintf("entity id %d does not match path id %d", e.GetID(), input.EntityID))
	}

	var originalHash *string
	if input.OriginalHash != "" {
		originalHash = &input.OriginalHash
	}

	hash, err := h.service.SaveEntity(ctx, input.UserID, input.ProjectName, e, originalHash, input.SyncID, input.Force)
	if err != nil {
		if !errors.Is(err, sync.ErrConflict) {
			h.log.Error("failed to save entity",
				slog.String("project", input.ProjectName),
				slog.Int("entity_id", input.EntityID),
				slog.Any("error", err),
			)
		}
		return nil, apierr.FromDomain(err, apierr.New(http.StatusExpectationFailed, "Save Error", err.Error()))
	}

	return &uploadEntityOutput{Body: sync.SaveEntityResponse{NewHash: hash}}, nil
}

func (h *Handler) downloadEntity(ctx context.Context, input *downloadEntityInput) (*huma.StreamResponse, error) {
	if err := h.authorize(ctx, input.ProjectPath); err != nil {
		return nil, err
	}

	e, err := h.service.LoadEntity(ctx, input.UserID, input.ProjectName, input.EntityID, input.SyncID)
	if err != nil {
		if !errors.Is(err, sync.ErrEntityNotFound) {
			h.log.Error("failed to load entity",
				slog.String("project", input.ProjectName),
				slog.Int("entity_id", input.EntityID),
				slog.Any("error", err),
			)
		}
		return nil, apierr.FromDomain(err, nil)
	}

	hash := entity.Hash(e)
	if input.EntityHash != "" && input.EntityHash == hash {
		return &huma.StreamResponse{Body: func(ctx huma.Context) {
			ctx.SetStatus(http.StatusNotModified)
		}}, nil
	}

	body, err := entity.Encode(e)
	if err != nil {
		h.log.Error("failed to encode entity", slog.Int("entity_id", input.EntityID), slog.Any("error", err))
		return nil, apierr.FromDomain(err, nil)
	}

	h.log.Debug("entity download",
		slog.Int("entity_id", input.EntityID),
		slog.String("client_hash", input.EntityHash),
		slog.String("server_hash", hash),
	)

	return &huma.StreamResponse{Body: func(ctx huma.Context) {
		ctx.SetHeader("Content-Type", "application/json")
		ctx.SetHeader(sync.HeaderEntityType, e.GetType().String())
		ctx.SetHeader(sync.HeaderEntityHash, hash)
		ctx.SetStatus(http.StatusOK)
		if _, err := ctx.BodyWriter().Write(body); err != nil {
			h.log.Error("failed to write entity", slog.Any("error", err))
		}
	}}, nil
}

func (h *Handler) deleteEntity(ctx context.Context, input *deleteEntityInput) (*deleteEntityOutput, error) {
	if err := h.authorize(ctx, input.ProjectPath); err != nil {
		return nil, err
	}

	err := h.service.DeleteEntity(ctx, input.UserID, input.ProjectName, input.EntityID, input.SyncID)
	switch {
	case err == nil:
		return &deleteEntityOutput{Body: sync.DeleteEntityResponse{Deleted: true}}, nil
	case errors.Is(err, sync.ErrNoEntityTypeFound):
		return &deleteEntityOutput{Body: sync.DeleteEntityResponse{Deleted: false}}, nil
	default:
		h.log.Error("failed to delete entity",
			slog.String("project", input.ProjectName),
			slog.Int("entity_id", input.EntityID),
			slog.Any("error", err),
		)
		return nil, apierr.FromDomain(err, nil)
	}
}
