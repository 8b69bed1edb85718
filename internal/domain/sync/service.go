package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/exp/slog"

	"hammer/internal/domain/entity"
)

// Servicer интерфейс серверной части синхронизации проектов
type Servicer interface {
	// BeginProjectSync открывает сессию и сравнивает состояние клиента с серверным
	BeginProjectSync(ctx context.Context, userID int, project string, clientState *entity.ClientEntityState, lite bool) (*SyncBegan, error)

	// EndProjectSync фиксирует результат синхронизации и закрывает сессию
	EndProjectSync(ctx context.Context, userID int, project, syncID string, lastSync *time.Time, lastID *int) error

	// AbortProjectSync закрывает сессию без фиксации baseline и данных синхронизации
	AbortProjectSync(ctx context.Context, userID int, project, syncID string) error

	// SaveEntity сохраняет сущность с оптимистичной проверкой конфликтов
	SaveEntity(ctx context.Context, userID int, project string, e entity.Entity, originalHash *string, syncID string, force bool) (string, error)

	// LoadEntity возвращает серверную версию сущности
	LoadEntity(ctx context.Context, userID int, project string, id int, syncID string) (entity.Entity, error)

	// DeleteEntity удаляет сущность с сервера
	DeleteEntity(ctx context.Context, userID int, project string, id int, syncID string) error
}

// ServiceConfig настройки сервиса синхронизации
type ServiceConfig struct {
	SessionTTL time.Duration
	GCInterval time.Duration
}

// Service реализация сервиса синхронизации
type Service struct {
	repo     Repository
	sessions *SessionTable
	log      *slog.Logger
	config   *ServiceConfig
	now      func() time.Time
}

// NewService создает новый сервис синхронизации
func NewService(repo Repository, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 30 * time.Minute
	}
	if config.GCInterval <= 0 {
		config.GCInterval = time.Minute
	}

	return &Service{
		repo:     repo,
		sessions: NewSessionTable(config.SessionTTL),
		log:      log.With(slog.String("component", "sync service")),
		config:   config,
		now:      time.Now,
	}
}

// RunSessionGC чистит просроченные сессии, пока жив контекст
func (s *Service) RunSessionGC(ctx context.Context) {
	s.sessions.Run(ctx, s.config.GCInterval, s.log)
}

// BeginProjectSync открывает сессию синхронизации проекта
func (s *Service) BeginProjectSync(ctx context.Context, userID int, project string, clientState *entity.ClientEntityState, lite bool) (*SyncBegan, error) {
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}

	serverState, err := s.repo.ListEntityHashes(ctx, userID, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity hashes: %w", err)
	}
	data, err := s.repo.LoadSyncData(ctx, userID, project)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync data: %w", err)
	}
	deleted, err := s.repo.ListDeletedIDs(ctx, userID, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted ids: %w", err)
	}
	persisted, err := s.repo.LoadBaseline(ctx, userID, project)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline: %w", err)
	}

	sort.Slice(serverState, func(i, j int) bool { return serverState[i].ID < serverState[j].ID })

	sess := s.sessions.Open(userID, project, lite)
	began := &SyncBegan{
		SyncID:      sess.id,
		LastSync:    data.LastSync,
		LastID:      max(data.LastID, maxID(serverState)),
		IDSequence:  []int{},
		ServerState: serverState,
		DeletedIDs:  deleted,
	}
	if began.DeletedIDs == nil {
		began.DeletedIDs = []int{}
	}
	for _, id := range began.DeletedIDs {
		began.LastID = max(began.LastID, id)
	}

	// Точка сравнения - baseline прошлого end_sync. Сущности вне его получают
	// текущий хэш сразу, а в lite-режиме при первом обращении.
	sess.seed(persisted, serverState)
	if !lite {
		sess.snapshot(serverState)
		began.IDSequence = clientNeeds(serverState, clientState)
		sess.setDiff(clientState, began.IDSequence, serverNeeds(serverState, clientState))
	}

	s.log.Info("project sync began",
		slog.Int("user_id", userID),
		slog.String("project", project),
		slog.String("sync_id", sess.id),
		slog.Bool("lite", lite),
		slog.Int("server_entities", len(serverState)),
		slog.Int("client_needs", len(began.IDSequence)),
	)

	return began, nil
}

// EndProjectSync закрывает сессию и сохраняет новые данные синхронизации
func (s *Service) EndProjectSync(ctx context.Context, userID int, project, syncID string, lastSync *time.Time, lastID *int) error {
	sess, err := s.sessions.Get(syncID, userID, project)
	if err != nil {
		return err
	}

	hashes, err := s.repo.ListEntityHashes(ctx, userID, project)
	if err != nil {
		return fmt.Errorf("failed to list entity hashes: %w", err)
	}
	prev, err := s.repo.LoadSyncData(ctx, userID, project)
	if err != nil {
		return fmt.Errorf("failed to load sync data: %w", err)
	}

	deleted, err := s.repo.ListDeletedIDs(ctx, userID, project)
	if err != nil {
		return fmt.Errorf("failed to list deleted ids: %w", err)
	}

	// Удаленные id тоже считаются выданными
	data := &SyncData{
		LastSync: s.now().UTC(),
		LastID:   max(prev.LastID, maxID(hashes)),
	}
	for _, id := range deleted {
		data.LastID = max(data.LastID, id)
	}
	if lastSync != nil {
		data.LastSync = lastSync.UTC()
	}
	if lastID != nil && *lastID > data.LastID {
		data.LastID = *lastID
	}

	if err := s.repo.SaveSyncData(ctx, userID, project, data, hashes); err != nil {
		return fmt.Errorf("failed to save sync data: %w", err)
	}
	s.sessions.Close(sess.id)

	s.log.Info("project sync ended",
		slog.Int("user_id", userID),
		slog.String("project", project),
		slog.String("sync_id", sess.id),
		slog.Int("last_id", data.LastID),
	)

	return nil
}

// AbortProjectSync освобождает сессию неудачной синхронизации.
// Baseline и lastSync остаются от последнего успешного end_sync.
func (s *Service) AbortProjectSync(_ context.Context, userID int, project, syncID string) error {
	sess, err := s.sessions.Get(syncID, userID, project)
	if err != nil {
		return err
	}
	s.sessions.Close(sess.id)

	s.log.Info("project sync aborted",
		slog.Int("user_id", userID),
		slog.String("project", project),
		slog.String("sync_id", sess.id),
	)
	return nil
}

// SaveEntity сохраняет сущность и возвращает ее новый хэш.
// Без force запись проходит только если клиент видел текущую серверную версию.
func (s *Service) SaveEntity(ctx context.Context, userID int, project string, e entity.Entity, originalHash *string, syncID string, force bool) (string, error) {
	sess, err := s.sessions.Get(syncID, userID, project)
	if err != nil {
		return "", err
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrInvalidEntity, err)
	}

	stored, err := NewStoredEntity(e)
	if err != nil {
		return "", err
	}
	stored.UpdatedAt = s.now().UTC()

	if force {
		if err := s.repo.UpsertEntity(ctx, userID, project, stored); err != nil {
			return "", fmt.Errorf("failed to save entity: %w", err)
		}
		sess.observe(stored.ID, stored.Hash)
		s.log.Debug("entity force saved",
			slog.String("type", stored.Type.String()),
			slog.Int("id", stored.ID),
		)
		return stored.Hash, nil
	}

	current, err := s.repo.LoadEntity(ctx, userID, project, stored.ID)
	switch {
	case errors.Is(err, ErrEntityNotFound):
		inserted, err := s.repo.InsertEntity(ctx, userID, project, stored)
		if err != nil {
			return "", fmt.Errorf("failed to insert entity: %w", err)
		}
		if !inserted {
			return "", s.conflict(ctx, userID, project, stored.ID)
		}
	case err != nil:
		return "", fmt.Errorf("failed to load entity: %w", err)
	default:
		if s.isConflict(sess, current, stored.Type, originalHash) {
			return "", s.conflictWith(current)
		}
		updated, err := s.repo.UpdateEntity(ctx, userID, project, stored, current.Hash)
		if err != nil {
			return "", fmt.Errorf("failed to update entity: %w", err)
		}
		if !updated {
			return "", s.conflict(ctx, userID, project, stored.ID)
		}
	}

	sess.observe(stored.ID, stored.Hash)
	s.log.Debug("entity saved",
		slog.String("type", stored.Type.String()),
		slog.Int("id", stored.ID),
	)
	return stored.Hash, nil
}

// isConflict проверяет, видел ли клиент текущую серверную версию
func (s *Service) isConflict(sess *syncSession, current *StoredEntity, t entity.Type, originalHash *string) bool {
	if current.Type != t {
		return true
	}
	if originalHash == nil || *originalHash != current.Hash {
		return true
	}
	// Сущность изменилась на сервере после начала сессии, и этот клиент ее не видел
	baseline := sess.baselineFor(current.ID, current.Hash)
	return current.Hash != baseline && !sess.hasObserved(current.ID, current.Hash)
}

func (s *Service) conflict(ctx context.Context, userID int, project string, id int) error {
	current, err := s.repo.LoadEntity(ctx, userID, project, id)
	if err != nil {
		return fmt.Errorf("failed to reload conflicting entity %d: %w", id, err)
	}
	return s.conflictWith(current)
}

func (s *Service) conflictWith(current *StoredEntity) error {
	e, err := current.Decode()
	if err != nil {
		return err
	}
	s.log.Info("entity conflict",
		slog.String("type", current.Type.String()),
		slog.Int("id", current.ID),
	)
	return &EntityConflictError{Entity: e}
}

// LoadEntity возвращает сущность и отмечает ее версию как увиденную клиентом
func (s *Service) LoadEntity(ctx context.Context, userID int, project string, id int, syncID string) (entity.Entity, error) {
	sess, err := s.sessions.Get(syncID, userID, project)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.LoadEntity(ctx, userID, project, id)
	if err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrEntityNotFound, id)
		}
		return nil, fmt.Errorf("failed to load entity: %w", err)
	}

	e, err := stored.Decode()
	if err != nil {
		return nil, err
	}
	sess.observe(stored.ID, stored.Hash)
	return e, nil
}

// DeleteEntity удаляет сущность любого типа с указанным id
func (s *Service) DeleteEntity(ctx context.Context, userID int, project string, id int, syncID string) error {
	sess, err := s.sessions.Get(syncID, userID, project)
	if err != nil {
		return err
	}

	deleted, err := s.repo.DeleteEntity(ctx, userID, project, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: %d", ErrNoEntityTypeFound, id)
	}

	sess.observe(id, "")
	s.log.Debug("entity deleted", slog.Int("id", id))
	return nil
}

// clientNeeds возвращает id сущностей, которые клиенту нужно скачать
func clientNeeds(server []entity.EntityHash, client *entity.ClientEntityState) []int {
	ids := make([]int, 0, len(server))
	if client == nil {
		for _, h := range server {
			ids = append(ids, h.ID)
		}
		sort.Ints(ids)
		return ids
	}

	local := make(map[int]string, len(client.Entities))
	for _, h := range client.Entities {
		local[h.ID] = h.Hash
	}
	removed := make(map[int]struct{})
	for _, list := range client.DeletedIDs {
		for _, id := range list {
			removed[id] = struct{}{}
		}
	}

	for _, h := range server {
		if _, ok := removed[h.ID]; ok {
			continue
		}
		if hash, ok := local[h.ID]; !ok || hash != h.Hash {
			ids = append(ids, h.ID)
		}
	}
	sort.Ints(ids)
	return ids
}

// serverNeeds возвращает id сущностей клиента, которых на сервере нет или они отличаются
func serverNeeds(server []entity.EntityHash, client *entity.ClientEntityState) []int {
	if client == nil {
		return nil
	}

	remote := make(map[int]string, len(server))
	for _, h := range server {
		remote[h.ID] = h.Hash
	}

	var ids []int
	for _, h := range client.Entities {
		if hash, ok := remote[h.ID]; !ok || hash != h.Hash {
			ids = append(ids, h.ID)
		}
	}
	sort.Ints(ids)
	return ids
}

func maxID(hashes []entity.EntityHash) int {
	m := 0
	for _, h := range hashes {
		m = max(m, h.ID)
	}
	return m
}
