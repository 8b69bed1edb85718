// Синхронизация проектов Hammer между устройствами одного пользователя.
//
// POST /project/{userId}/{projectName}/begin_sync                  (auth)
// GET  /project/{userId}/{projectName}/end_sync                    (auth)
// POST /project/{userId}/{projectName}/upload_entity/{entityId}    (auth)
// GET  /project/{userId}/{projectName}/download_entity/{entityId}  (auth)
// GET  /project/{userId}/{projectName}/delete_entity/{entityId}    (auth)
// GET  /account/test_auth/{userId}                                 (auth)
// GET  /api/v1/health

package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/exp/slog"

	accountAPI "hammer/internal/app/server/api/http/account"
	"hammer/internal/app/server/api/http/apierr"
	healthAPI "hammer/internal/app/server/api/http/health"
	"hammer/internal/app/server/api/http/middleware"
	"hammer/internal/app/server/api/http/middleware/auth"
	"hammer/internal/app/server/api/http/middleware/logger"
	projectAPI "hammer/internal/app/server/api/http/project"
	"hammer/internal/domain/session"
	"hammer/internal/domain/sync"
)

// Deps - сервисы, из которых собираются обработчики
type Deps struct {
	Sync        sync.Servicer
	Sessions    session.Servicer
	Storage     healthAPI.Pinger
	CORSOrigins []string
}

type Handlers struct {
	Health  *healthAPI.Handler
	Account *accountAPI.Handler
	Project *projectAPI.Handler
}

// New создает роутер со всеми операциями через huma.Register
func New(deps Deps, log *slog.Logger) http.Handler {
	huma.NewError = apierr.NewError

	mux := chi.NewMux()
	API := humachi.New(mux, Config())

	h := handlers(deps, log)
	h.Health.SetupRoutes(API)
	h.Account.SetupRoutes(API)
	h.Project.SetupRoutes(API)

	if len(deps.CORSOrigins) == 0 {
		return mux
	}
	return cors.New(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Authorization", "Content-Type",
			sync.HeaderSyncID, sync.HeaderOriginalHash, sync.HeaderEntityType, sync.HeaderEntityHash,
		},
		ExposedHeaders: []string{sync.HeaderEntityType, sync.HeaderEntityHash},
	}).Handler(mux)
}

// Config - конфигурация huma без ссылок $schema в ответах
func Config() huma.Config {
	config := huma.DefaultConfig("Hammer Sync API", "1.0.0")
	config.CreateHooks = nil
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}
	return config
}

func handlers(deps Deps, log *slog.Logger) *Handlers {
	authMW := auth.New(deps.Sessions, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	healthHandler := healthAPI.NewHandler(log, middlewares.Add(loggerMW.Middleware()).GetAllAndClear(), deps.Storage)

	accountHandler := accountAPI.NewHandler(log,
		middlewares.Add(loggerMW.Middleware(), authMW.Middleware()).GetAllAndClear())

	projectHandler := projectAPI.NewHandler(deps.Sync, log,
		middlewares.Add(loggerMW.Middleware(), authMW.Middleware()).GetAllAndClear())

	return &Handlers{
		Health:  healthHandler,
		Account: accountHandler,
		Project: projectHandler,
	}
}
