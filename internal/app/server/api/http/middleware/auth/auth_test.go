package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"

	"hammer/internal/domain/session"
)

type MockSession struct {
	mock.Mock
}

func (m *MockSession) Create(ctx context.Context, userID int) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Validate(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

type whoamiOutput struct {
	Body struct {
		UserID int `json:"userId"`
	}
}

func newTestAPI(t *testing.T, svc session.Servicer) humatest.TestAPI {
	_, api := humatest.New(t)
	mw := New(svc, slog.Default())

	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/whoami",
		Middlewares: huma.Middlewares{mw.Middleware()},
	}, func(ctx context.Context, _ *struct{}) (*whoamiOutput, error) {
		out := &whoamiOutput{}
		out.Body.UserID, _ = GetUserID(ctx)
		return out, nil
	})
	return api
}

func TestMiddleware_ValidToken(t *testing.T) {
	svc := new(MockSession)
	svc.On("Validate", mock.Anything, "good").Return(3, nil)
	api := newTestAPI(t, svc)

	resp := api.Get("/whoami", "Authorization: Bearer good")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"userId":3`)
	svc.AssertExpectations(t)
}

func TestMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header []any
	}{
		{name: "no header"},
		{name: "basic auth", header: []any{"Authorization: Basic abc"}},
		{name: "bad token", header: []any{"Authorization: Bearer bad"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSession)
			svc.On("Validate", mock.Anything, "bad").Return(0, session.ErrInvalidToken)
			api := newTestAPI(t, svc)

			resp := api.Get("/whoami", tt.header...)

			assert.Equal(t, http.StatusUnauthorized, resp.Code)
			assert.JSONEq(t, `{"error":"Unauthorized","message":"`+messageFor(tt.name)+`"}`, resp.Body.String())
		})
	}
}

func messageFor(name string) string {
	if name == "bad token" {
		return "Invalid or expired token"
	}
	return "Missing bearer token"
}

func TestGetUserID_Missing(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)
}
