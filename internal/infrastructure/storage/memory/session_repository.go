package memory

import (
	"context"
	gosync "sync"
	"time"

	"hammer/internal/domain/session"
)

type authSession struct {
	userID    int
	expiresAt time.Time
}

// SessionRepository - реализация session.Repository в памяти
type SessionRepository struct {
	mu       gosync.Mutex
	sessions map[string]authSession
	now      func() time.Time
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]authSession),
		now:      time.Now,
	}
}

func (r *SessionRepository) Create(_ context.Context, userID int, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[tokenHash] = authSession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *SessionRepository) Validate(_ context.Context, tokenHash string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[tokenHash]
	if !ok {
		return 0, session.ErrInvalidToken
	}
	if !r.now().Before(s.expiresAt) {
		delete(r.sessions, tokenHash)
		return 0, session.ErrExpiredToken
	}
	return s.userID, nil
}
