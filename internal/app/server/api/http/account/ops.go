package account

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) testAuthOp() huma.Operation {
	return huma.Operation{
		OperationID: "account-test-auth",
		Method:      http.MethodGet,
		Path:        "/account/test_auth/{userId}",
		Summary:     "Проверить токен",
		Description: "Отвечает 200, если токен действителен и принадлежит пользователю.",
		Tags:        []string{"account"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
