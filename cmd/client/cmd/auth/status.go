package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hammer/cmd/client/cmd/types"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Проверить вход и доступность сервера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		if err := app.CheckConnection(ctx); err != nil {
			color.Red("✗ Сервер недоступен: %v", err)
		} else {
			color.Green("✓ Сервер доступен")
		}

		if !app.IsAuthenticated() {
			color.Yellow("Вход не выполнен. Выполните: hammer auth login")
			return nil
		}

		fmt.Printf("Пользователь: %d\n", app.UserID())
		if err := app.TestAuth(ctx); err != nil {
			color.Red("✗ Токен не принят: %v", err)
			return nil
		}
		color.Green("✓ Токен действителен")
		return nil
	},
}

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Удалить сохраненный токен",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}
		if err := app.Logout(); err != nil {
			return err
		}
		fmt.Println("Токен удален")
		return nil
	},
}
