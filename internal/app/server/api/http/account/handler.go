package account

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"hammer/internal/app/server/api/http/apierr"
	"hammer/internal/app/server/api/http/middleware/auth"
)

type Handler struct {
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.testAuthOp(), h.testAuth)
}

func (h *Handler) testAuth(ctx context.Context, input *testAuthInput) (*testAuthOutput, error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok || userID != input.UserID {
		return nil, apierr.Unauthorized("Token does not belong to this user")
	}

	return &testAuthOutput{
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(fmt.Sprintf("Authenticated as %d", userID)),
	}, nil
}
