// cmd/client/cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"hammer/cmd/client/cmd/auth"
	"hammer/cmd/client/cmd/entity"
	"hammer/cmd/client/cmd/project"
	"hammer/cmd/client/cmd/sync"
	"hammer/cmd/client/cmd/types"
	"hammer/internal/app/client"
	"hammer/internal/app/client/config"
	"hammer/internal/utils/logger"
)

var (
	cfgFile   string
	cfg       *config.Config
	log       *slog.Logger
	logCloser io.Closer
	app       *client.App
	debug     bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "hammer",
	Short: "Hammer - синхронизация писательских проектов",
	Long: `Hammer хранит проекты локально и синхронизирует их с сервером.

Сцены, заметки, события таймлайна, статьи энциклопедии и черновики сцен
правятся офлайн, а команда sync сводит изменения всех устройств.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}

	// Stdout занят выводом команд, лог пишется в файл
	if debug {
		log = logger.New(cfg.Env)
	} else {
		log, logCloser = logger.NewFile(logger.FileOptions{
			Path:  cfg.LogPath,
			Debug: !cfg.IsProd(),
		})
	}

	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, types.ClientAppKey, app))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	var errs []error
	if app != nil {
		errs = append(errs, app.Close())
	}
	if logCloser != nil {
		errs = append(errs, logCloser.Close())
	}
	return errors.Join(errs...)
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Ищем конфиг в стандартных местах
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		viper.AddConfigPath(filepath.Join(home, ".hammer"))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return config.Load()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "писать лог в консоль")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера Hammer (host:port)")

	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.StatusCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)

	rootCmd.AddCommand(project.ProjectCmd)
	project.ProjectCmd.AddCommand(project.InitCmd)
	project.ProjectCmd.AddCommand(project.ListCmd)

	rootCmd.AddCommand(entity.EntityCmd)
	entity.EntityCmd.AddCommand(entity.ListCmd)
	entity.EntityCmd.AddCommand(entity.ShowCmd)
	entity.EntityCmd.AddCommand(entity.PutCmd)
	entity.EntityCmd.AddCommand(entity.DeleteCmd)

	rootCmd.AddCommand(sync.SyncCmd)
}
