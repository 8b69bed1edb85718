package sync

import (
	"context"
	"fmt"
	"os"
	gosync "sync"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"

	entitycmd "hammer/cmd/client/cmd/entity"
	"hammer/internal/app/client"
	"hammer/internal/app/client/projectsync"
	"hammer/internal/domain/entity"
)

const (
	preferLocal  = "local"
	preferServer = "server"
	choiceSkip   = "skip"
)

// syncView выводит прогресс, журнал и итог синхронизации в терминал
type syncView struct {
	app     *client.App
	syncer  *projectsync.ProjectSynchronizer
	project string
	prefer  string

	mu   gosync.Mutex
	logs []projectsync.LogMessage
}

func newSyncView(app *client.App, project, prefer string) *syncView {
	return &syncView{
		app:     app,
		syncer:  app.Synchronizer(project),
		project: project,
		prefer:  prefer,
	}
}

func (v *syncView) callbacks() projectsync.Callbacks {
	return projectsync.Callbacks{
		OnProgress: func(p float64) {
			fmt.Fprintf(os.Stderr, "\rПрогресс: %3.0f%%", p*100)
		},
		OnLog: func(m projectsync.LogMessage) {
			v.mu.Lock()
			v.logs = append(v.logs, m)
			v.mu.Unlock()
		},
		OnConflict: v.onConflict,
		OnComplete: func(projectsync.Result) {
			fmt.Fprintln(os.Stderr)
		},
	}
}

func (v *syncView) onConflict(c projectsync.EntityConflict) {
	chosen, ok := pick(v.prefer, c)
	if !ok {
		chosen = v.ask(c)
	}

	if chosen == nil {
		if err := v.syncer.SkipConflict(); err != nil {
			color.Red("Не удалось пропустить конфликт: %v", err)
		}
		return
	}
	if err := v.syncer.ResolveConflict(context.Background(), chosen); err != nil {
		color.Red("Не удалось разрешить конфликт: %v", err)
		_ = v.syncer.SkipConflict()
	}
}

// pick выбирает версию по --prefer. ok=false, если нужно спросить пользователя.
func pick(prefer string, c projectsync.EntityConflict) (entity.Entity, bool) {
	switch prefer {
	case preferLocal:
		return c.Client, true
	case preferServer:
		return c.Server, true
	}
	return nil, false
}

// ask показывает обе версии и спрашивает, какую оставить. nil означает пропуск.
func (v *syncView) ask(c projectsync.EntityConflict) entity.Entity {
	fmt.Fprintln(os.Stderr)

	serverYAML, _ := entitycmd.Encode(c.Server)
	localYAML, _ := entitycmd.Encode(c.Client)

	choice := preferLocal
	form := huh.NewForm(huh.NewGroup(
		huh.NewNote().
			Title("Серверная версия").
			Description(string(serverYAML)),
		huh.NewNote().
			Title("Локальная версия").
			Description(string(localYAML)),
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Конфликт: %s %d", c.Type.DisplayName(), c.Server.GetID())).
			Options(
				huh.NewOption("Оставить локальную версию", preferLocal),
				huh.NewOption("Взять серверную версию", preferServer),
				huh.NewOption("Пропустить до следующей синхронизации", choiceSkip),
			).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		color.Yellow("Выбор прерван, конфликт пропущен: %v", err)
		return nil
	}

	switch choice {
	case preferLocal:
		return c.Client
	case preferServer:
		return c.Server
	}
	return nil
}

// summary печатает журнал (если его не нужно закрывать) и итог синхронизации
func (v *syncView) summary(r *projectsync.Result) {
	v.mu.Lock()
	logs := v.logs
	v.mu.Unlock()

	if !r.Success || !v.app.AutoCloseSyncLog() {
		fmt.Println("--- Журнал ---")
		for _, m := range logs {
			printLog(m)
		}
		fmt.Println("--------------")
	}

	switch {
	case r.Cancelled:
		color.Yellow("⚠️  Синхронизация отменена")
	case r.Err != nil:
		color.Red("✗ Синхронизация не удалась: %v", r.Err)
	case !r.Success:
		color.Yellow("⚠️  Синхронизация завершена, неразрешенных конфликтов: %d", r.Skipped)
	default:
		color.Green("✅ Синхронизация завершена за %v", r.Duration().Round(time.Millisecond))
	}

	fmt.Printf("Отправлено: %d, получено: %d\n", r.Uploaded, r.Downloaded)
	fmt.Printf("Удалено локально: %d, на сервере: %d\n", r.DeletedLocally, r.DeletedRemotely)
	if r.Conflicts > 0 {
		fmt.Printf("Конфликтов: %d (разрешено %d, пропущено %d)\n", r.Conflicts, r.Resolved, r.Skipped)
	}
}

func (v *syncView) reset() {
	v.mu.Lock()
	v.logs = nil
	v.mu.Unlock()
}

func printLog(m projectsync.LogMessage) {
	switch m.Level {
	case projectsync.LogError:
		color.Red("%s", m.Message)
	case projectsync.LogWarn:
		color.Yellow("%s", m.Message)
	default:
		fmt.Println(m.Message)
	}
}
