package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hammer/internal/app/server/config"
)

var tokenUserID int

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Управление bearer-токенами",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Выпустить токен для пользователя",
	Long: `Выпускает bearer-токен для пользователя.

В режиме session токен сохраняется в базе, поэтому нужно хранилище postgres.
В режиме jwt токен подписывается секретом SECRET.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenUserID <= 0 {
			return errors.New("--user-id must be positive")
		}
		if cfg.Auth.Mode == config.AuthModeSession && cfg.Storage == config.StorageMemory {
			return errors.New("session tokens need postgres storage, in-memory tokens die with the process")
		}

		be, err := openBackend(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer be.closer.Close()

		sessions, err := newSessions(cfg, be.sessions, log)
		if err != nil {
			return fmt.Errorf("failed to init auth: %w", err)
		}

		token, err := sessions.Create(cmd.Context(), tokenUserID)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().IntVar(&tokenUserID, "user-id", 0, "id пользователя")
	_ = tokenIssueCmd.MarkFlagRequired("user-id")
}
