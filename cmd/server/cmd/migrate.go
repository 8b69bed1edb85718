package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hammer/internal/infrastructure/migration"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Управление схемой базы данных",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}

		mg := migration.NewMigration(cfg, nil)
		switch action {
		case "up":
			if err := mg.Up(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Миграции применены")
		case "down":
			if err := mg.Down(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Миграции откачены")
		case "version":
			version, dirty, err := mg.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Версия схемы: %d (dirty: %t)\n", version, dirty)
		}
		return nil
	},
}
