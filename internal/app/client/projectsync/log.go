package projectsync

import (
	"fmt"

	"golang.org/x/exp/slog"
)

type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogMessage - сообщение журнала синхронизации для пользователя
type LogMessage struct {
	Level   LogLevel
	Project string
	Message string
}

func (m LogMessage) String() string {
	return fmt.Sprintf("%s - %s", m.Project, m.Message)
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
