// cmd/server/cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"hammer/internal/app/server/config"
	"hammer/internal/utils/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hammer-server",
	Short: "Hammer - сервер синхронизации проектов",
	Long: `Сервер синхронизации проектов Hammer.

Хранит серверную копию сущностей проекта, открывает сессии синхронизации
и проверяет записи по хэшу содержимого.`,
	PersistentPreRunE: setupServer,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupServer(_ *cobra.Command, _ []string) error {
	cfg = config.MustLoad(cfgFile)
	log = logger.New(cfg.Env)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML-файл конфигурации")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenIssueCmd)
}
