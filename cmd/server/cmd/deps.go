package cmd

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/exp/slog"

	healthAPI "hammer/internal/app/server/api/http/health"
	"hammer/internal/app/server/config"
	"hammer/internal/domain/session"
	"hammer/internal/domain/sync"
	"hammer/internal/infrastructure/storage/memory"
	"hammer/internal/infrastructure/storage/postgres"
)

// backend - репозитории выбранного хранилища
type backend struct {
	sync     sync.Repository
	sessions session.Repository
	pinger   healthAPI.Pinger
	closer   io.Closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backend, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return &backend{
			sync:     memory.NewSyncRepository(),
			sessions: memory.NewSessionRepository(),
			closer:   nopCloser{},
		}, nil
	case config.StoragePostgres:
		db, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return &backend{
			sync:     postgres.NewSyncRepository(db, log),
			sessions: postgres.NewSessionRepository(db, log),
			pinger:   db,
			closer:   db,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

func newSessions(cfg *config.Config, repo session.Repository, log *slog.Logger) (session.Servicer, error) {
	if cfg.Auth.Mode == config.AuthModeJWT {
		return session.NewJWTService(cfg.Auth.Secret, cfg.Auth.TokenTTL.Duration, log)
	}
	return session.NewService(repo, log, cfg.Auth.TokenTTL.Duration), nil
}
