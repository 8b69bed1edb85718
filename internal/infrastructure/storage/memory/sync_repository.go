// Package memory хранит данные сервера в памяти процесса.
// Используется в тестах и при STORAGE=memory.
package memory

import (
	"context"
	"sort"
	gosync "sync"

	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
)

type projectKey struct {
	userID  int
	project string
}

type project struct {
	entities map[int]*sync.StoredEntity
	deleted  map[int]struct{}
	data     sync.SyncData
	baseline map[int]string
}

// SyncRepository - реализация sync.Repository в памяти
type SyncRepository struct {
	mu       gosync.Mutex
	projects map[projectKey]*project
}

func NewSyncRepository() *SyncRepository {
	return &SyncRepository{projects: make(map[projectKey]*project)}
}

func (r *SyncRepository) get(userID int, name string) *project {
	key := projectKey{userID: userID, project: name}
	p, ok := r.projects[key]
	if !ok {
		p = &project{
			entities: make(map[int]*sync.StoredEntity),
			deleted:  make(map[int]struct{}),
			baseline: make(map[int]string),
		}
		r.projects[key] = p
	}
	return p
}

func (r *SyncRepository) ListEntityHashes(_ context.Context, userID int, name string) ([]entity.EntityHash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.get(userID, name)
	out := make([]entity.EntityHash, 0, len(p.entities))
	for _, e := range p.entities {
		out = append(out, entity.EntityHash{ID: e.ID, Type: e.Type, Hash: e.Hash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SyncRepository) LoadEntity(_ context.Context, userID int, name string, id int) (*sync.StoredEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.get(userID, name).entities[id]
	if !ok {
		return nil, sync.ErrEntityNotFound
	}
	c := *e
	return &c, nil
}

func (r *SyncRepository) InsertEntity(_ context.Context, userID int, name string, e *sync.StoredEntity) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.get(userID, name)
	if _, ok := p.entities[e.ID]; ok {
		return false, nil
	}
	p.put(e)
	return true, nil
}

func (r *SyncRepository) UpdateEntity(_ context.Context, userID int, name string, e *sync.StoredEntity, expectedHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.get(userID, name)
	current, ok := p.entities[e.ID]
	if !ok || current.Hash != expectedHash {
		return false, nil
	}
	p.put(e)
	return true, nil
}

func (r *SyncRepository) UpsertEntity(_ context.Context, userID int, name string, e *sync.StoredEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.get(userID, name).put(e)
	return nil
}

func (p *project) put(e *sync.StoredEntity) {
	c := *e
	p.entities[e.ID] = &c
	delete(p.deleted, e.ID)
}

func (r *SyncRepository) DeleteEntity(_ context.Context, userID int, name string, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.get(userID, name)
	if _, ok := p.entities[id]; !ok {
		return false, nil
	}
	delete(p.entities, id)
	p.deleted[id] = struct{}{}
	return true, nil
}

func (r *SyncRepository) ListDeletedIDs(_ context.Context, userID int, name string) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.get(userID, name)
	ids := make([]int, 0, len(p.deleted))
	for id := range p.deleted {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *SyncRepository) LoadSyncData(_ context.Context, userID int, name string) (*sync.SyncData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := r.get(userID, name).data
	return &data, nil
}

func (r *SyncRepository) SaveSyncData(_ context.Context, userID int, name string, data *sync.SyncData, baseline []entity.EntityHash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.get(userID, name)
	p.data = *data
	p.baseline = make(map[int]string, len(baseline))
	for _, h := range baseline {
		p.baseline[h.ID] = h.Hash
	}
	return nil
}

// LoadBaseline возвращает хэши, зафиксированные последним end_sync
func (r *SyncRepository) LoadBaseline(_ context.Context, userID int, name string) (map[int]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int]string)
	for id, h := range r.get(userID, name).baseline {
		out[id] = h
	}
	return out, nil
}
