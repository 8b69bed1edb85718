package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"hammer/internal/app/client/config"
	"hammer/internal/app/client/projectsync"
	"hammer/internal/app/client/store"
	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
)

var (
	ErrNotAuthenticated = errors.New("не выполнен вход. Выполните: hammer auth login")
	ErrInvalidUserID    = errors.New("некорректный идентификатор пользователя")
)

type App struct {
	config        *config.Config
	log           *slog.Logger
	httpClient    *httpClient
	store         store.Store
	syncService   *SyncService
	state         *AppState
	authenticated bool
	mu            gosync.RWMutex
}

// AppState хранит состояние приложения между запусками
type AppState struct {
	UserID           int       `json:"user_id"`
	LastProject      string    `json:"last_project"`
	LastSync         time.Time `json:"last_sync"`
	AutoCloseSyncLog *bool     `json:"auto_close_sync_log,omitempty"`
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	state, err := loadAppState(cfg)
	if err != nil {
		log.Warn("Не удалось загрузить состояние приложения", slog.Any("error", err))
		state = &AppState{}
	}
	if cfg.UserID != 0 {
		state.UserID = cfg.UserID
	}

	httpCl, err := NewHTTPClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации HTTP клиента: %w", err)
	}
	httpCl.SetUserID(state.UserID)

	// Локальное хранилище на SQLite, при ошибке работаем в памяти
	var st store.Store
	sqliteStore, err := store.NewSQLite(cfg.DataPath)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", slog.Any("error", err))
		st = store.NewMemory()
	} else {
		st = sqliteStore
	}

	app := &App{
		config:     cfg,
		log:        log,
		httpClient: httpCl,
		store:      st,
		state:      state,
	}
	app.syncService = NewSyncService(app)

	if token, err := app.GetToken(); err == nil && token != "" {
		httpCl.SetToken(token)
		app.authenticated = state.UserID > 0
		log.Debug("Токен загружен из файла")
	}

	return app, nil
}

func loadAppState(cfg *config.Config) (*AppState, error) {
	statePath := filepath.Join(cfg.ConfigDir, "state.json")

	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		return &AppState{}, nil
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		return nil, err
	}

	var state AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

// saveAppState вызывается под a.mu
func (a *App) saveAppState() error {
	statePath := filepath.Join(a.config.ConfigDir, "state.json")
	data, err := json.MarshalIndent(a.state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(statePath, data, 0600)
}

// Close освобождает локальное хранилище
func (a *App) Close() error {
	a.log.Debug("Завершение работы клиента")
	return a.store.Close()
}

// CheckConnection проверяет соединение с сервером
func (a *App) CheckConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return a.httpClient.HealthCheck(ctx)
}

// IsAuthenticated проверяет, сохранены ли токен и пользователь
func (a *App) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authenticated
}

// UserID возвращает текущего пользователя
func (a *App) UserID() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.UserID
}

// GetToken возвращает сохраненный токен
func (a *App) GetToken() (string, error) {
	tokenBytes, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotAuthenticated
		}
		return "", fmt.Errorf("ошибка чтения токена: %w", err)
	}
	return strings.TrimSpace(string(tokenBytes)), nil
}

// SaveToken сохраняет токен аутентификации
func (a *App) SaveToken(token string) error {
	if err := os.WriteFile(a.config.TokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}

	a.httpClient.SetToken(token)

	return nil
}

// Login проверяет токен на сервере и сохраняет его вместе с пользователем
func (a *App) Login(ctx context.Context, userID int, token string) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	token = strings.TrimSpace(token)

	a.httpClient.SetUserID(userID)
	a.httpClient.SetToken(token)
	if err := a.httpClient.TestAuth(ctx); err != nil {
		a.mu.RLock()
		a.httpClient.SetUserID(a.state.UserID)
		a.mu.RUnlock()
		if prev, tokenErr := a.GetToken(); tokenErr == nil {
			a.httpClient.SetToken(prev)
		}
		return fmt.Errorf("сервер не принял токен: %w", err)
	}

	if err := a.SaveToken(token); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.UserID = userID
	a.authenticated = true
	if err := a.saveAppState(); err != nil {
		return fmt.Errorf("ошибка сохранения состояния: %w", err)
	}

	a.log.Info("Вход выполнен", slog.Int("user_id", userID))
	return nil
}

// Logout удаляет токен
func (a *App) Logout() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.authenticated = false
	a.httpClient.SetToken("")

	if err := os.Remove(a.config.TokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления токена: %w", err)
	}
	return nil
}

// TestAuth проверяет сохраненный токен на сервере
func (a *App) TestAuth(ctx context.Context) error {
	if !a.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	return a.httpClient.TestAuth(ctx)
}

// AutoCloseSyncLog - закрывать ли журнал синхронизации после успеха
func (a *App) AutoCloseSyncLog() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state.AutoCloseSyncLog != nil {
		return *a.state.AutoCloseSyncLog
	}
	return a.config.AutoCloseSyncLog
}

func (a *App) SetAutoCloseSyncLog(v bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.AutoCloseSyncLog = &v
	return a.saveAppState()
}

// CreateProject создает пустой локальный проект
func (a *App) CreateProject(ctx context.Context, name string) error {
	if err := sync.ValidateProjectName(name); err != nil {
		return err
	}
	if err := a.store.CreateProject(ctx, name); err != nil {
		return err
	}
	a.log.Info("Проект создан", slog.String("project", name))
	return nil
}

func (a *App) GetProject(ctx context.Context, name string) (*store.Project, error) {
	return a.store.GetProject(ctx, name)
}

func (a *App) ListProjects(ctx context.Context) ([]store.Project, error) {
	return a.store.ListProjects(ctx)
}

// ListEntities возвращает сущности проекта, пустой тип означает все
func (a *App) ListEntities(ctx context.Context, project string, t entity.Type) ([]store.Record, error) {
	return a.store.ListEntities(ctx, project, t)
}

func (a *App) LoadEntity(ctx context.Context, project string, id int) (*store.Record, error) {
	return a.store.LoadEntity(ctx, project, id)
}

// PutEntity сохраняет локальную правку. Сущности без id получают следующий id проекта.
func (a *App) PutEntity(ctx context.Context, project string, e entity.Entity) (*store.Record, error) {
	if e.GetID() == 0 {
		id, err := a.store.NextID(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("ошибка выделения id: %w", err)
		}
		e.SetID(id)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidEntity, err)
	}

	r, err := a.store.PutEntity(ctx, project, e)
	if err != nil {
		return nil, err
	}

	a.log.Debug("Сущность сохранена",
		slog.String("project", project),
		slog.String("type", e.GetType().String()),
		slog.Int("id", e.GetID()),
	)
	return r, nil
}

// DeleteEntity удаляет сущность локально, сервер узнает об этом при синхронизации
func (a *App) DeleteEntity(ctx context.Context, project string, id int) error {
	if err := a.store.DeleteEntity(ctx, project, id); err != nil {
		return err
	}
	a.log.Debug("Сущность удалена", slog.String("project", project), slog.Int("id", id))
	return nil
}

// Sync синхронизирует проект через сервис синхронизации
func (a *App) Sync(ctx context.Context, project string, cb projectsync.Callbacks, opts ...projectsync.SyncOption) (*projectsync.Result, error) {
	return a.syncService.Sync(ctx, project, cb, opts...)
}

func (a *App) GetSyncService() *SyncService {
	return a.syncService
}

// Synchronizer возвращает синхронизатор проекта, один на проект
func (a *App) Synchronizer(project string) *projectsync.ProjectSynchronizer {
	return a.syncService.synchronizer(project)
}

func (a *App) rememberSync(project string, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.LastProject = project
	a.state.LastSync = at
	if err := a.saveAppState(); err != nil {
		a.log.Warn("Не удалось сохранить состояние", slog.Any("error", err))
	}
}
