package projectsync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"hammer/internal/app/client/store"
	"hammer/internal/domain/entity"
)

var (
	ErrSyncInProgress = errors.New("sync is already in progress")
	ErrNoConflict     = errors.New("no conflict is awaiting resolution")
)

// State - этап синхронизации проекта
type State string

const (
	StateIdle              State = "idle"
	StateSyncStarted       State = "sync_started"
	StateScene             State = "scene"
	StateNote              State = "note"
	StateTimelineEvent     State = "timeline_event"
	StateEncyclopediaEntry State = "encyclopedia_entry"
	StateSceneDraft        State = "scene_draft"
	StateComplete          State = "complete"
	StateFailed            State = "failed"
)

// Доли шкалы прогресса: begin_sync, проходы по типам, end_sync
const (
	beginStage = 0.1
	endStage   = 0.9
)

// EntityConflict - серверная и локальная версии одной сущности
type EntityConflict struct {
	Type   entity.Type
	Server entity.Entity
	Client entity.Entity
}

// Result - итог синхронизации
type Result struct {
	Success         bool
	Cancelled       bool
	Uploaded        int
	Downloaded      int
	DeletedLocally  int
	DeletedRemotely int
	Conflicts       int
	Resolved        int
	Skipped         int
	Err             error
	StartTime       time.Time
	EndTime         time.Time
}

func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Callbacks - обратные вызовы синхронизации, любой может быть nil.
// OnConflict вызывается синхронно, ответ передается через ResolveConflict или SkipConflict.
type Callbacks struct {
	OnProgress func(progress float64)
	OnLog      func(msg LogMessage)
	OnConflict func(c EntityConflict)
	OnComplete func(r Result)
}

type syncOptions struct {
	lite bool
}

type SyncOption func(*syncOptions)

// WithLite включает облегченный режим: состояние клиента не отправляется
func WithLite() SyncOption {
	return func(o *syncOptions) { o.lite = true }
}

type resolution struct {
	entity entity.Entity
	skip   bool
}

// pendingConflict - конфликт, ожидающий ответа. У каждого конфликта свой канал ответа.
type pendingConflict struct {
	EntityConflict
	answer chan resolution
}

// ProjectSynchronizer проводит синхронизацию одного проекта по типам в фиксированном порядке
type ProjectSynchronizer struct {
	project       string
	api           ServerAPI
	store         store.Store
	log           *slog.Logger
	synchronizers []typeSynchronizer
	now           func() time.Time

	mu       gosync.Mutex
	state    State
	syncing  bool
	cancel   context.CancelFunc
	done     chan struct{}
	awaiting *pendingConflict
}

func NewProjectSynchronizer(project string, api ServerAPI, st store.Store, log *slog.Logger) *ProjectSynchronizer {
	return &ProjectSynchronizer{
		project: project,
		api:     api,
		store:   st,
		log:     log.With(slog.String("component", "project sync"), slog.String("project", project)),
		synchronizers: []typeSynchronizer{
			NewEntitySynchronizer[*entity.Scene](entity.TypeScene, api, st),
			NewEntitySynchronizer[*entity.Note](entity.TypeNote, api, st),
			NewEntitySynchronizer[*entity.TimelineEvent](entity.TypeTimelineEvent, api, st),
			NewEntitySynchronizer[*entity.EncyclopediaEntry](entity.TypeEncyclopediaEntry, api, st),
			NewEntitySynchronizer[*entity.SceneDraft](entity.TypeSceneDraft, api, st),
		},
		now:   time.Now,
		state: StateIdle,
	}
}

func (s *ProjectSynchronizer) Project() string {
	return s.project
}

func (s *ProjectSynchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ProjectSynchronizer) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

func (s *ProjectSynchronizer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Cancel отменяет текущую синхронизацию, если она идет
func (s *ProjectSynchronizer) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Sync синхронизирует проект и возвращает true при полном успехе.
// Новый вызов отменяет синхронизацию, которая еще идет.
func (s *ProjectSynchronizer) Sync(ctx context.Context, cb Callbacks, opts ...SyncOption) bool {
	var o syncOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, release := s.start(ctx)
	defer release()

	res := s.run(ctx, cb, o)
	res.EndTime = s.now()
	if res.Success {
		s.setState(StateComplete)
	} else {
		s.setState(StateFailed)
	}
	if cb.OnComplete != nil {
		cb.OnComplete(*res)
	}
	s.setState(StateIdle)
	return res.Success
}

// start отменяет предыдущую синхронизацию, дожидается ее и занимает флаг syncing
func (s *ProjectSynchronizer) start(parent context.Context) (context.Context, func()) {
	for {
		s.mu.Lock()
		if !s.syncing {
			ctx, cancel := context.WithCancel(parent)
			done := make(chan struct{})
			s.syncing, s.cancel, s.done = true, cancel, done
			s.mu.Unlock()

			return ctx, func() {
				cancel()
				s.mu.Lock()
				s.syncing, s.cancel, s.done, s.awaiting = false, nil, nil, nil
				s.mu.Unlock()
				close(done)
			}
		}
		cancel, done := s.cancel, s.done
		s.mu.Unlock()

		s.log.Info("cancelling previous sync")
		cancel()
		<-done
	}
}

func (s *ProjectSynchronizer) run(ctx context.Context, cb Callbacks, o syncOptions) *Result {
	res := &Result{StartTime: s.now()}
	logf := s.logger(cb)

	s.setState(StateSyncStarted)
	logf(LogInfo, "Project Sync Started")
	cb.progress(0)

	state, err := s.clientState(ctx)
	if err != nil {
		return s.fail(ctx, cb, res, "", err)
	}
	sent := state
	if o.lite {
		sent = nil
	}

	began, err := s.api.BeginSync(ctx, s.project, sent, o.lite)
	if err != nil {
		return s.fail(ctx, cb, res, "", fmt.Errorf("failed to begin sync: %w", err))
	}
	logf(LogInfo, "Sync session %s began, server has %d entities", began.SyncID, len(began.ServerState))
	cb.progress(beginStage)

	p := &pass{
		project:       s.project,
		syncID:        began.SyncID,
		server:        groupHashes(began.ServerState),
		serverDeleted: began.DeletedIDs,
		localDeleted:  state.DeletedIDs,
		result:        res,
		log:           logf,
	}

	slice := (endStage - beginStage) / float64(len(s.synchronizers))
	stage := func(x float64) float64 { return beginStage + slice*x }
	for i, ts := range s.synchronizers {
		s.setState(State(ts.Type()))
		p.progress = func(done, total int) {
			if total > 0 {
				cb.progress(stage(float64(i) + float64(done)/float64(total)))
			}
		}
		p.conflict = func(ctx context.Context, ts typeSynchronizer, server, client entity.Entity) error {
			return s.awaitResolution(ctx, cb, res, ts, began.SyncID, server, client)
		}

		if err := ts.sync(ctx, p); err != nil {
			return s.fail(ctx, cb, res, began.SyncID, err)
		}
		cb.progress(stage(float64(i + 1)))
	}

	if err := ctx.Err(); err != nil {
		return s.fail(ctx, cb, res, began.SyncID, err)
	}

	project, err := s.store.GetProject(ctx, s.project)
	if err != nil {
		return s.fail(ctx, cb, res, began.SyncID, err)
	}
	lastID := max(project.LastID, began.LastID)
	lastSync := s.now().UTC()

	if err := s.api.EndSync(ctx, s.project, began.SyncID, &lastSync, &lastID); err != nil {
		// Сессия на сервере уже не наша или недоступна, повторно закрывать нечего
		return s.fail(ctx, cb, res, "", fmt.Errorf("failed to end sync: %w", err))
	}
	if err := s.store.SaveSyncData(ctx, s.project, lastSync, lastID); err != nil {
		return s.fail(ctx, cb, res, "", err)
	}

	cb.progress(1)
	res.Success = res.Skipped == 0
	if res.Skipped > 0 {
		logf(LogWarn, "Sync finished with %d unresolved conflicts", res.Skipped)
	} else {
		logf(LogInfo, "Project Sync Complete")
	}
	return res
}

// fail завершает неудачную синхронизацию.
// Отмененная сессия не закрывается, при недоступной сети очистка не делается,
// в остальных случаях abort_sync освобождает сессию. Учет не сохраняется ни на клиенте, ни на сервере.
func (s *ProjectSynchronizer) fail(ctx context.Context, cb Callbacks, res *Result, syncID string, err error) *Result {
	logf := s.logger(cb)
	res.Err = err

	switch {
	case ctx.Err() != nil:
		res.Cancelled = true
		res.Err = ctx.Err()
		logf(LogWarn, "Project sync cancelled")
	case IsNetworkError(err):
		logf(LogError, "Server unreachable: %v", err)
	default:
		logf(LogError, "Project sync failed: %v", err)
		if syncID != "" {
			if abortErr := s.api.AbortSync(ctx, s.project, syncID); abortErr != nil {
				s.log.Warn("failed to release sync session", slog.String("sync_id", syncID), slog.Any("error", abortErr))
			}
		}
	}
	return res
}

func (s *ProjectSynchronizer) awaitResolution(ctx context.Context, cb Callbacks, res *Result, ts typeSynchronizer, syncID string, server, client entity.Entity) error {
	res.Conflicts++
	conflict := EntityConflict{Type: ts.Type(), Server: server, Client: client}
	s.logger(cb)(LogWarn, "Conflict on %s %d", ts.Type(), server.GetID())

	if cb.OnConflict == nil {
		res.Skipped++
		return nil
	}

	p := s.pend(conflict)
	defer s.drop(p)

	cb.OnConflict(conflict)

	select {
	case r := <-p.answer:
		if r.skip {
			res.Skipped++
			s.logger(cb)(LogWarn, "Conflict on %s %d skipped", ts.Type(), server.GetID())
			return nil
		}
		if err := ts.resolve(ctx, s.project, syncID, r.entity, entity.Hash(server)); err != nil {
			return err
		}
		res.Resolved++
		s.logger(cb)(LogInfo, "Conflict on %s %d resolved", ts.Type(), server.GetID())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ProjectSynchronizer) pend(c EntityConflict) *pendingConflict {
	p := &pendingConflict{EntityConflict: c, answer: make(chan resolution, 1)}
	s.mu.Lock()
	s.awaiting = p
	s.mu.Unlock()
	return p
}

// drop снимает конфликт с ожидания. Опоздавший ответ остается в его собственном канале.
func (s *ProjectSynchronizer) drop(p *pendingConflict) {
	s.mu.Lock()
	if s.awaiting == p {
		s.awaiting = nil
	}
	s.mu.Unlock()
}

// answerLocked отдает ответ ожидающему конфликту, вызывается под s.mu
func (s *ProjectSynchronizer) answerLocked(r resolution) {
	p := s.awaiting
	s.awaiting = nil
	p.answer <- r
}

// ResolveConflict применяет выбранную версию сущности. Во время синхронизации
// ответ уходит ожидающему проходу, иначе открывается отдельная облегченная сессия.
func (s *ProjectSynchronizer) ResolveConflict(ctx context.Context, chosen entity.Entity) error {
	s.mu.Lock()
	if s.awaiting != nil {
		if s.awaiting.Server.GetID() != chosen.GetID() || s.awaiting.Type != chosen.GetType() {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s %d", ErrNoConflict, chosen.GetType(), chosen.GetID())
		}
		s.answerLocked(resolution{entity: chosen})
		s.mu.Unlock()
		return nil
	}
	syncing := s.syncing
	s.mu.Unlock()

	if syncing {
		return ErrSyncInProgress
	}
	return s.resolveDetached(ctx, chosen)
}

// SkipConflict оставляет конфликт неразрешенным до следующей синхронизации
func (s *ProjectSynchronizer) SkipConflict() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.awaiting == nil {
		return ErrNoConflict
	}
	s.answerLocked(resolution{skip: true})
	return nil
}

func (s *ProjectSynchronizer) resolveDetached(ctx context.Context, chosen entity.Entity) error {
	ctx, release := s.start(ctx)
	defer release()

	var ts typeSynchronizer
	for _, candidate := range s.synchronizers {
		if candidate.Type() == chosen.GetType() {
			ts = candidate
		}
	}
	if ts == nil {
		return fmt.Errorf("%w: %q", entity.ErrUnknownType, string(chosen.GetType()))
	}

	began, err := s.api.BeginSync(ctx, s.project, nil, true)
	if err != nil {
		return fmt.Errorf("failed to begin sync: %w", err)
	}

	var serverHash string
	for _, h := range began.ServerState {
		if h.ID == chosen.GetID() && h.Type == chosen.GetType() {
			serverHash = h.Hash
		}
	}

	if err := ts.resolve(ctx, s.project, began.SyncID, chosen, serverHash); err != nil {
		if !IsNetworkError(err) {
			_ = s.api.AbortSync(ctx, s.project, began.SyncID)
		}
		return err
	}
	return s.api.EndSync(ctx, s.project, began.SyncID, nil, nil)
}

// clientState собирает снимок локального проекта для begin_sync
func (s *ProjectSynchronizer) clientState(ctx context.Context) (*entity.ClientEntityState, error) {
	records, err := s.store.ListEntities(ctx, s.project, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list local entities: %w", err)
	}
	deleted, err := s.store.PendingDeletions(ctx, s.project)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletions: %w", err)
	}

	state := &entity.ClientEntityState{
		Entities:   make([]entity.EntityHash, 0, len(records)),
		DeletedIDs: deleted,
	}
	for _, r := range records {
		state.Entities = append(state.Entities, entity.EntityHash{
			ID:   r.Entity.GetID(),
			Type: r.Entity.GetType(),
			Hash: r.Hash,
		})
	}
	state.Sort()
	return state, nil
}

func (s *ProjectSynchronizer) logger(cb Callbacks) func(level LogLevel, format string, args ...any) {
	return func(level LogLevel, format string, args ...any) {
		msg := LogMessage{Level: level, Project: s.project, Message: fmt.Sprintf(format, args...)}
		s.log.Log(context.Background(), level.slog(), msg.Message)
		if cb.OnLog != nil {
			cb.OnLog(msg)
		}
	}
}

func (cb Callbacks) progress(v float64) {
	if cb.OnProgress != nil {
		cb.OnProgress(v)
	}
}

// pass - общее состояние проходов по типам в рамках одной сессии
type pass struct {
	project       string
	syncID        string
	server        map[entity.Type]map[int]string
	serverDeleted []int
	localDeleted  map[entity.Type][]int
	result        *Result
	log           func(level LogLevel, format string, args ...any)
	progress      func(done, total int)
	conflict      func(ctx context.Context, ts typeSynchronizer, server, client entity.Entity) error
}

func (p *pass) serverHashes(t entity.Type) map[int]string {
	if h, ok := p.server[t]; ok {
		return h
	}
	return map[int]string{}
}

func groupHashes(hashes []entity.EntityHash) map[entity.Type]map[int]string {
	out := make(map[entity.Type]map[int]string)
	for _, h := range hashes {
		if out[h.Type] == nil {
			out[h.Type] = make(map[int]string)
		}
		out[h.Type][h.ID] = h.Hash
	}
	return out
}
