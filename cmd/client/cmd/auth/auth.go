package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd - родительская команда для операций со входом пользователя
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Управление входом",
	Long:  `Вход по токену сервера, проверка и выход.`,
}
