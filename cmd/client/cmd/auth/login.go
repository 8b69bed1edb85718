// cmd/client/cmd/auth/login.go
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hammer/cmd/client/cmd/types"
)

var (
	loginUserID int
	loginToken  string
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти на сервер Hammer",
	Long: `Сохраняет токен доступа, выданный сервером (hammer-server token issue).

Токен проверяется запросом к серверу и хранится локально для последующих команд.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}

		if loginUserID <= 0 {
			fmt.Print("ID пользователя: ")
			if _, err := fmt.Scanln(&loginUserID); err != nil {
				return fmt.Errorf("ошибка чтения ID пользователя: %w", err)
			}
		}

		token := loginToken
		if token == "" {
			fmt.Print("Токен: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			if err != nil {
				return fmt.Errorf("ошибка чтения токена: %w", err)
			}
			fmt.Println()
			token = strings.TrimSpace(string(raw))
		}
		if token == "" {
			return fmt.Errorf("токен не может быть пустым")
		}

		fmt.Println("Проверка токена...")
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.Login(ctx, loginUserID, token); err != nil {
			return fmt.Errorf("ошибка входа: %w", err)
		}

		color.Green("✅ Вход выполнен, пользователь %d", loginUserID)
		return nil
	},
}

func init() {
	LoginCmd.Flags().IntVarP(&loginUserID, "user-id", "u", 0, "ID пользователя")
	LoginCmd.Flags().StringVar(&loginToken, "token", "", "токен доступа (по умолчанию запрашивается без эха)")
}
