package project

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hammer/cmd/client/cmd/types"
)

// ProjectCmd - родительская команда для операций с проектами
var ProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "Управление локальными проектами",
}

var InitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Создать локальный проект",
	Long: `Создает пустой локальный проект.

Чтобы получить проект, созданный на другом устройстве, создайте проект
с тем же именем и выполните hammer sync.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}
		if err := app.CreateProject(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("ошибка создания проекта: %w", err)
		}
		fmt.Printf("Проект %q создан\n", args[0])
		return nil
	},
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список локальных проектов",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}

		projects, err := app.ListProjects(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения списка проектов: %w", err)
		}
		if len(projects) == 0 {
			fmt.Println("Проектов нет. Создайте: hammer project init <name>")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLAST SYNC\tLAST ID")
		for _, p := range projects {
			lastSync := "никогда"
			if p.LastSync != nil {
				lastSync = p.LastSync.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, lastSync, strconv.Itoa(p.LastID))
		}
		return w.Flush()
	},
}
