// Package types - общие ключи контекста команд клиента
package types

import (
	"context"
	"errors"

	"hammer/internal/app/client"
)

type contextKey string

// ClientAppKey - ключ, под которым root кладет *client.App в контекст команды
const ClientAppKey contextKey = "app"

var ErrNoApp = errors.New("приложение не инициализировано")

// App достает приложение из контекста команды
func App(ctx context.Context) (*client.App, error) {
	app, ok := ctx.Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, ErrNoApp
	}
	return app, nil
}
