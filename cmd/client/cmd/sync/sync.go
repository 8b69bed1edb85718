package sync

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hammer/cmd/client/cmd/types"
	"hammer/internal/app/client"
	"hammer/internal/app/client/projectsync"
)

var (
	liteSync     bool
	watch        bool
	prefer       string
	syncStatus   bool
	resetStats   bool
	autoCloseLog string
)

var SyncCmd = &cobra.Command{
	Use:   "sync <project>",
	Short: "Синхронизировать проект с сервером",
	Long: `Синхронизирует локальный проект с сервером.

Типы сущностей обрабатываются по очереди: сцены, заметки, события таймлайна,
статьи энциклопедии, черновики сцен. При конфликте команда спрашивает, какую
версию оставить, либо применяет --prefer.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}

		switch {
		case syncStatus:
			return showSyncStatus(app)
		case resetStats:
			app.GetSyncService().ResetStats()
			fmt.Println("Статистика синхронизации сброшена")
			return nil
		case autoCloseLog != "":
			return setAutoCloseLog(app, autoCloseLog)
		}

		if len(args) == 0 {
			return fmt.Errorf("укажите проект: hammer sync <project>")
		}
		if prefer != "" && prefer != preferLocal && prefer != preferServer {
			return fmt.Errorf("--prefer принимает local или server")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var opts []projectsync.SyncOption
		if liteSync {
			opts = append(opts, projectsync.WithLite())
		}

		if watch {
			return runWatch(ctx, app, args[0], opts)
		}
		return runSync(ctx, app, args[0], opts)
	},
}

func runSync(ctx context.Context, app *client.App, project string, opts []projectsync.SyncOption) error {
	if !app.IsAuthenticated() {
		return client.ErrNotAuthenticated
	}

	fmt.Printf("=== Синхронизация проекта %s ===\n", project)
	view := newSyncView(app, project, prefer)

	result, err := app.Sync(ctx, project, view.callbacks(), opts...)
	if result == nil {
		return err
	}
	view.summary(result)
	if err != nil {
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("синхронизация завершена с неразрешенными конфликтами: %d", result.Skipped)
	}
	return nil
}

func runWatch(ctx context.Context, app *client.App, project string, opts []projectsync.SyncOption) error {
	if !app.IsAuthenticated() {
		return client.ErrNotAuthenticated
	}

	fmt.Printf("Наблюдение за проектом %s, Ctrl+C для выхода\n", project)
	view := newSyncView(app, project, prefer)
	cb := view.callbacks()
	onComplete := cb.OnComplete
	cb.OnComplete = func(r projectsync.Result) {
		onComplete(r)
		view.summary(&r)
		view.reset()
	}

	err := app.GetSyncService().StartAutoSync(ctx, project, cb, opts...)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func showSyncStatus(app *client.App) error {
	stats := app.GetSyncService().GetStats()

	fmt.Println("=== Статистика синхронизации ===")
	fmt.Printf("Всего синхронизаций: %d\n", stats.TotalSyncs)
	if !stats.LastSuccessful.IsZero() {
		fmt.Printf("Последняя успешная: %s\n", stats.LastSuccessful.Local().Format(time.DateTime))
	}
	if !stats.LastFailed.IsZero() {
		fmt.Printf("Последняя неудачная: %s\n", stats.LastFailed.Local().Format(time.DateTime))
	}
	fmt.Printf("Отправлено: %d, получено: %d, удалено: %d\n",
		stats.TotalUploaded, stats.TotalDownloaded, stats.TotalDeleted)
	fmt.Printf("Конфликтов: %d (разрешено %d, пропущено %d)\n",
		stats.TotalConflicts, stats.TotalResolved, stats.TotalSkipped)
	fmt.Printf("Ошибок: %d\n", stats.TotalErrors)
	fmt.Printf("Средняя длительность: %.2fs\n", stats.AvgSyncDuration)
	fmt.Printf("Автозакрытие журнала: %v\n", app.AutoCloseSyncLog())
	return nil
}

func setAutoCloseLog(app *client.App, v string) error {
	var on bool
	switch v {
	case "on", "true":
		on = true
	case "off", "false":
	default:
		return fmt.Errorf("--auto-close-log принимает on или off")
	}
	if err := app.SetAutoCloseSyncLog(on); err != nil {
		return err
	}
	fmt.Printf("Автозакрытие журнала: %v\n", on)
	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&liteSync, "lite", false, "облегченный режим без отправки состояния клиента")
	SyncCmd.Flags().BoolVarP(&watch, "watch", "w", false, "синхронизировать при каждом изменении локальных данных")
	SyncCmd.Flags().StringVar(&prefer, "prefer", "", "разрешать конфликты без вопроса: local или server")
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статистику синхронизации")
	SyncCmd.Flags().BoolVar(&resetStats, "reset-stats", false, "сбросить статистику синхронизации")
	SyncCmd.Flags().StringVar(&autoCloseLog, "auto-close-log", "", "скрывать журнал после успешной синхронизации: on или off")
}
