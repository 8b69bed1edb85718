package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"hammer/internal/domain/entity"
)

// syncSession - состояние одной сессии синхронизации проекта
type syncSession struct {
	id        string
	key       projectKey
	lite      bool
	createdAt time.Time
	expiresAt time.Time

	mu          gosync.Mutex
	baseline    map[int]string
	observed    map[int]string
	clientState *entity.ClientEntityState
	clientNeeds []int
	serverNeeds []int
}

// snapshot фиксирует baseline для всех сущностей сервера на момент начала
func (s *syncSession) snapshot(hashes []entity.EntityHash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hashes {
		if _, ok := s.baseline[h.ID]; !ok {
			s.baseline[h.ID] = h.Hash
		}
	}
}

// seed выставляет baseline из зафиксированного последним end_sync
// для тех сущностей сервера, которые он покрывает
func (s *syncSession) seed(persisted map[int]string, hashes []entity.EntityHash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hashes {
		if b, ok := persisted[h.ID]; ok {
			s.baseline[h.ID] = b
		}
	}
}

// baselineFor возвращает baseline сущности. В lite-режиме он выставляется при первом обращении.
func (s *syncSession) baselineFor(id int, current string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.baseline[id]
	if !ok {
		s.baseline[id] = current
		return current
	}
	return h
}

// observe запоминает хэш, который клиент видел или записал в этой сессии
func (s *syncSession) observe(id int, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.baseline[id]; !ok {
		s.baseline[id] = hash
	}
	s.observed[id] = hash
}

func (s *syncSession) hasObserved(id int, hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.observed[id]
	return ok && h == hash
}

func (s *syncSession) setDiff(state *entity.ClientEntityState, clientNeeds, serverNeeds []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientState = state
	s.clientNeeds = clientNeeds
	s.serverNeeds = serverNeeds
}

// SessionTable - таблица открытых сессий синхронизации.
// На одну пару (пользователь, проект) открыта не более чем одна сессия.
type SessionTable struct {
	mu        gosync.Mutex
	ttl       time.Duration
	sessions  map[string]*syncSession
	byProject map[projectKey]string
	now       func() time.Time
}

func NewSessionTable(ttl time.Duration) *SessionTable {
	return &SessionTable{
		ttl:       ttl,
		sessions:  make(map[string]*syncSession),
		byProject: make(map[projectKey]string),
		now:       time.Now,
	}
}

// Open открывает новую сессию и вытесняет предыдущую для того же проекта
func (t *SessionTable) Open(userID int, project string, lite bool) *syncSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := projectKey{userID: userID, project: project}
	if prev, ok := t.byProject[key]; ok {
		delete(t.sessions, prev)
	}

	now := t.now()
	sess := &syncSession{
		id:        uuid.NewString(),
		key:       key,
		lite:      lite,
		createdAt: now,
		expiresAt: now.Add(t.ttl),
		baseline:  make(map[int]string),
		observed:  make(map[int]string),
	}
	t.sessions[sess.id] = sess
	t.byProject[key] = sess.id
	return sess
}

// Get возвращает сессию и продлевает ее срок жизни
func (t *SessionTable) Get(syncID string, userID int, project string) (*syncSession, error) {
	if syncID == "" {
		return nil, fmt.Errorf("%w: missing sync id", ErrInvalidSyncSession)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	sess, ok := t.sessions[syncID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sync id %s", ErrInvalidSyncSession, syncID)
	}
	if sess.key != (projectKey{userID: userID, project: project}) {
		return nil, fmt.Errorf("%w: sync id %s belongs to another project", ErrInvalidSyncSession, syncID)
	}

	now := t.now()
	if now.After(sess.expiresAt) {
		t.remove(sess)
		return nil, fmt.Errorf("%w: sync id %s expired", ErrInvalidSyncSession, syncID)
	}
	sess.expiresAt = now.Add(t.ttl)
	return sess, nil
}

func (t *SessionTable) Close(syncID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sess, ok := t.sessions[syncID]; ok {
		t.remove(sess)
	}
}

func (t *SessionTable) remove(sess *syncSession) {
	delete(t.sessions, sess.id)
	if t.byProject[sess.key] == sess.id {
		delete(t.byProject, sess.key)
	}
}

// Collect удаляет просроченные сессии и возвращает их количество
func (t *SessionTable) Collect() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for _, sess := range t.sessions {
		if now.After(sess.expiresAt) {
			t.remove(sess)
			removed++
		}
	}
	return removed
}

func (t *SessionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Run периодически чистит просроченные сессии до отмены контекста
func (t *SessionTable) Run(ctx context.Context, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Collect(); n > 0 {
				log.Debug("expired sync sessions collected", "count", n)
			}
		}
	}
}
