package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/slog"

	"hammer/internal/app/client/projectsync"
	"hammer/internal/domain/entity"
)

// SyncService управляет синхронизацией проектов между клиентом и сервером
type SyncService struct {
	app         *App
	log         *slog.Logger
	mu          gosync.RWMutex
	syncers     map[string]*projectsync.ProjectSynchronizer
	fingerprint map[string]string
	lastSync    time.Time
	stats       *SyncStats
}

// SyncStats статистика синхронизации
type SyncStats struct {
	TotalSyncs      int       `json:"total_syncs"`
	LastSuccessful  time.Time `json:"last_successful"`
	LastFailed      time.Time `json:"last_failed"`
	TotalUploaded   int       `json:"total_uploaded"`
	TotalDownloaded int       `json:"total_downloaded"`
	TotalDeleted    int       `json:"total_deleted"`
	TotalConflicts  int       `json:"total_conflicts"`
	TotalResolved   int       `json:"total_resolved"`
	TotalSkipped    int       `json:"total_skipped"`
	TotalErrors     int       `json:"total_errors"`
	AvgSyncDuration float64   `json:"avg_sync_duration"`
}

// NewSyncService создает новый сервис синхронизации
func NewSyncService(app *App) *SyncService {
	s := &SyncService{
		app:         app,
		log:         app.log.With(slog.String("component", "sync service")),
		syncers:     make(map[string]*projectsync.ProjectSynchronizer),
		fingerprint: make(map[string]string),
		stats:       &SyncStats{},
	}
	if stats, err := s.loadStats(); err == nil {
		s.stats = stats
	}
	return s
}

func (s *SyncService) synchronizer(project string) *projectsync.ProjectSynchronizer {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.syncers[project]
	if !ok {
		ps = projectsync.NewProjectSynchronizer(project, s.app.httpClient, s.app.store, s.app.log)
		s.syncers[project] = ps
	}
	return ps
}

// Sync синхронизирует проект. Ошибка возвращается, если синхронизация прервана;
// неразрешенные конфликты видны по Result.Success и Result.Skipped.
func (s *SyncService) Sync(ctx context.Context, project string, cb projectsync.Callbacks, opts ...projectsync.SyncOption) (*projectsync.Result, error) {
	if !s.app.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if _, err := s.app.store.GetProject(ctx, project); err != nil {
		return nil, err
	}

	var result projectsync.Result
	onComplete := cb.OnComplete
	cb.OnComplete = func(r projectsync.Result) {
		result = r
		if onComplete != nil {
			onComplete(r)
		}
	}

	s.synchronizer(project).Sync(ctx, cb, opts...)

	s.updateStats(&result)
	if result.Success {
		s.app.rememberSync(project, result.EndTime)
		if fp, err := s.localFingerprint(ctx, project); err == nil {
			s.mu.Lock()
			s.fingerprint[project] = fp
			s.mu.Unlock()
		}
	}

	if result.Err != nil {
		return &result, result.Err
	}
	return &result, nil
}

// StartAutoSync синхронизирует проект сразу, затем по изменениям локальной базы
// (с задержкой WATCH_DEBOUNCE) и раз в SyncInterval для получения чужих правок
func (s *SyncService) StartAutoSync(ctx context.Context, project string, cb projectsync.Callbacks, opts ...projectsync.SyncOption) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ошибка создания наблюдателя: %w", err)
	}
	defer watcher.Close()

	dataFile := filepath.Base(s.app.config.DataPath)
	if err := watcher.Add(filepath.Dir(s.app.config.DataPath)); err != nil {
		return fmt.Errorf("ошибка наблюдения за %s: %w", s.app.config.DataPath, err)
	}

	interval := s.app.config.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	debounce := time.NewTimer(s.app.config.WatchDebounce)
	debounce.Stop()
	defer debounce.Stop()

	s.log.Info("Запуск автоматической синхронизации",
		slog.String("project", project),
		slog.Duration("interval", interval),
		slog.Duration("debounce", s.app.config.WatchDebounce),
	)

	s.autoSync(ctx, project, cb, opts)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Автоматическая синхронизация остановлена")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// База SQLite пишет еще и в -wal и -shm рядом с основным файлом
			if !strings.HasPrefix(filepath.Base(ev.Name), dataFile) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(s.app.config.WatchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("Ошибка наблюдателя", slog.Any("error", err))
		case <-debounce.C:
			if s.changedSinceSync(ctx, project) {
				s.autoSync(ctx, project, cb, opts)
			}
		case <-ticker.C:
			s.autoSync(ctx, project, cb, opts)
		}
	}
}

func (s *SyncService) autoSync(ctx context.Context, project string, cb projectsync.Callbacks, opts []projectsync.SyncOption) {
	if s.synchronizer(project).IsSyncing() {
		s.log.Debug("Синхронизация уже идет, пропускаем", slog.String("project", project))
		return
	}
	if _, err := s.Sync(ctx, project, cb, opts...); err != nil && ctx.Err() == nil {
		s.log.Error("Ошибка автоматической синхронизации", slog.String("project", project), slog.Any("error", err))
	}
}

// changedSinceSync сравнивает локальный снимок с тем, что был после последней успешной синхронизации
func (s *SyncService) changedSinceSync(ctx context.Context, project string) bool {
	fp, err := s.localFingerprint(ctx, project)
	if err != nil {
		s.log.Warn("Не удалось прочитать локальное состояние", slog.Any("error", err))
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint[project] != fp
}

// localFingerprint - хэш набора локальных сущностей и очереди удалений
func (s *SyncService) localFingerprint(ctx context.Context, project string) (string, error) {
	records, err := s.app.store.ListEntities(ctx, project, "")
	if err != nil {
		return "", err
	}
	deleted, err := s.app.store.PendingDeletions(ctx, project)
	if err != nil {
		return "", err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		fmt.Fprintf(h, "%s:%d:%s;", r.Entity.GetType(), r.Entity.GetID(), r.Hash)
	}
	for _, t := range entity.Types {
		ids := append([]int(nil), deleted[t]...)
		sort.Ints(ids)
		for _, id := range ids {
			h.Write([]byte("-" + t.String() + ":" + strconv.Itoa(id) + ";"))
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// updateStats обновляет статистику синхронизации
func (s *SyncService) updateStats(result *projectsync.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalSyncs++

	if result.Success {
		s.stats.LastSuccessful = result.EndTime
		s.lastSync = result.EndTime
	} else {
		s.stats.LastFailed = time.Now()
	}

	s.stats.TotalUploaded += result.Uploaded
	s.stats.TotalDownloaded += result.Downloaded
	s.stats.TotalDeleted += result.DeletedLocally + result.DeletedRemotely
	s.stats.TotalConflicts += result.Conflicts
	s.stats.TotalResolved += result.Resolved
	s.stats.TotalSkipped += result.Skipped
	if result.Err != nil {
		s.stats.TotalErrors++
	}

	// Обновляем среднюю продолжительность
	s.stats.AvgSyncDuration = (s.stats.AvgSyncDuration*float64(s.stats.TotalSyncs-1) +
		result.Duration().Seconds()) / float64(s.stats.TotalSyncs)

	s.saveStats()
}

func (s *SyncService) statsPath() string {
	return filepath.Join(s.app.config.ConfigDir, "sync_stats.json")
}

func (s *SyncService) loadStats() (*SyncStats, error) {
	data, err := os.ReadFile(s.statsPath())
	if err != nil {
		return nil, err
	}

	var stats SyncStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("ошибка парсинга статистики: %w", err)
	}
	return &stats, nil
}

// saveStats вызывается под s.mu
func (s *SyncService) saveStats() {
	data, err := json.MarshalIndent(s.stats, "", "  ")
	if err != nil {
		s.log.Error("Ошибка сериализации статистики", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(s.statsPath(), data, 0600); err != nil {
		s.log.Error("Ошибка записи статистики", slog.Any("error", err))
	}
}

// GetStats возвращает копию статистики синхронизации
func (s *SyncService) GetStats() *SyncStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statsCopy := *s.stats
	return &statsCopy
}

// GetLastSyncTime возвращает время последней успешной синхронизации
func (s *SyncService) GetLastSyncTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// IsSyncing проверяет, идет ли синхронизация хотя бы одного проекта
func (s *SyncService) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ps := range s.syncers {
		if ps.IsSyncing() {
			return true
		}
	}
	return false
}

// ResetStats сбрасывает статистику синхронизации
func (s *SyncService) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = &SyncStats{}
	s.saveStats()
}
