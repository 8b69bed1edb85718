package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hammer/internal/domain/entity"
)

type memProject struct {
	info     Project
	records  map[int]*Record
	deletion map[int]entity.Type
}

// Memory - временное in-memory хранилище
type Memory struct {
	mu       sync.RWMutex
	projects map[string]*memProject
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		projects: make(map[string]*memProject),
		now:      time.Now,
	}
}

func (m *Memory) project(name string) (*memProject, error) {
	p, ok := m.projects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return p, nil
}

func (m *Memory) CreateProject(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[name]; ok {
		return fmt.Errorf("%w: %s", ErrProjectExists, name)
	}
	m.projects[name] = &memProject{
		info:     Project{Name: name},
		records:  make(map[int]*Record),
		deletion: make(map[int]entity.Type),
	}
	return nil
}

func (m *Memory) GetProject(_ context.Context, name string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, err := m.project(name)
	if err != nil {
		return nil, err
	}
	info := p.info
	return &info, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListEntities(_ context.Context, project string, t entity.Type) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, err := m.project(project)
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, r := range p.records {
		if t == "" || r.Entity.GetType() == t {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity.GetID() < out[j].Entity.GetID() })
	return out, nil
}

func (m *Memory) LoadEntity(_ context.Context, project string, id int) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, err := m.project(project)
	if err != nil {
		return nil, err
	}
	r, ok := p.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	out := *r
	return &out, nil
}

func (m *Memory) PutEntity(_ context.Context, project string, e entity.Entity) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.project(project)
	if err != nil {
		return nil, err
	}

	r := &Record{Entity: e, Hash: entity.Hash(e), UpdatedAt: m.now().UTC()}
	if prev, ok := p.records[e.GetID()]; ok {
		r.SyncedHash = prev.SyncedHash
	}
	p.records[e.GetID()] = r
	p.info.LastID = max(p.info.LastID, e.GetID())
	delete(p.deletion, e.GetID())

	out := *r
	return &out, nil
}

func (m *Memory) MarkSynced(_ context.Context, project string, e entity.Entity, syncedHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.project(project)
	if err != nil {
		return err
	}
	p.records[e.GetID()] = &Record{
		Entity:     e,
		Hash:       entity.Hash(e),
		SyncedHash: syncedHash,
		UpdatedAt:  m.now().UTC(),
	}
	p.info.LastID = max(p.info.LastID, e.GetID())
	return nil
}

func (m *Memory) RemoveEntity(_ context.Context, project string, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.project(project)
	if err != nil {
		return err
	}
	delete(p.records, id)
	return nil
}

func (m *Memory) DeleteEntity(_ context.Context, project string, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.project(project)
	if err != nil {
		return err
	}
	r, ok := p.records[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	if r.SyncedHash != "" {
		p.deletion[id] = r.Entity.GetType()
	}
	delete(p.records, id)
	return nil
}

func (m *Memory) PendingDeletions(_ context.Context, project string) (map[entity.Type][]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, err := m.project(project)
	if err != nil {
		return nil, err
	}
	out := make(map[entity.Type][]int)
	for id, t := range p.deletion {
		out[t] = append(out[t], id)
	}
	for _, ids := range out {
		sort.Ints(ids)
	}
	return out, nil
}

func (m *Memory) ClearPendingDeletion(_ context.Context, project string, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.project(project)
	if err != nil {
		return err
	}
	delete(p.deletion, id)
	return nil
}

func (m *Memory) NextID(_ context.Context, project string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.project(project)
	if err != nil {
		return 0, err
	}
	p.info.LastID++
	return p.info.LastID, nil
}

func (m *Memory) SaveSyncData(_ context.Context, project string, lastSync time.Time, lastID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.project(project)
	if err != nil {
		return err
	}
	ts := lastSync.UTC()
	p.info.LastSync = &ts
	p.info.LastID = max(p.info.LastID, lastID)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
