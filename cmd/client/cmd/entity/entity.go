package entity

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hammer/cmd/client/cmd/types"
	"hammer/internal/domain/entity"
)

var (
	projectName string
	listType    string
)

// EntityCmd - родительская команда для работы с сущностями проекта
var EntityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Сущности проекта",
	Long: `Просмотр и правка сущностей локального проекта.

Правки сохраняются локально и отправляются на сервер командой hammer sync.`,
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список сущностей проекта",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}

		var t entity.Type
		if listType != "" {
			if t, err = entity.ParseType(listType); err != nil {
				return err
			}
		}

		records, err := app.ListEntities(cmd.Context(), projectName, t)
		if err != nil {
			return fmt.Errorf("ошибка получения сущностей: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("Сущности не найдены")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tTITLE\tSTATUS\tUPDATED")
		for _, r := range records {
			status := "synced"
			switch {
			case r.SyncedHash == "":
				status = "new"
			case r.Modified():
				status = "modified"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strconv.Itoa(r.Entity.GetID()),
				r.Entity.GetType(),
				Title(r.Entity),
				status,
				r.UpdatedAt.Local().Format(time.DateTime),
			)
		}
		return w.Flush()
	},
}

var ShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Показать сущность в YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		r, err := app.LoadEntity(cmd.Context(), projectName, id)
		if err != nil {
			return fmt.Errorf("ошибка загрузки сущности %d: %w", id, err)
		}
		raw, err := Encode(r.Entity)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(raw)
		return err
	},
}

var PutCmd = &cobra.Command{
	Use:   "put <file|->",
	Short: "Создать или изменить сущность из YAML",
	Long: `Читает сущность из YAML-файла (или stdin, если указан "-").

Формат совпадает с выводом hammer entity show. Сущность без id
получает следующий свободный id проекта.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}

		raw, err := readInput(args[0])
		if err != nil {
			return err
		}
		e, err := Decode(raw)
		if err != nil {
			return err
		}

		r, err := app.PutEntity(cmd.Context(), projectName, e)
		if err != nil {
			return fmt.Errorf("ошибка сохранения сущности: %w", err)
		}
		fmt.Printf("%s %d сохранена\n", r.Entity.GetType().DisplayName(), r.Entity.GetID())
		return nil
	},
}

var DeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Удалить сущность",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd.Context())
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		if err := app.DeleteEntity(cmd.Context(), projectName, id); err != nil {
			return fmt.Errorf("ошибка удаления сущности %d: %w", id, err)
		}
		fmt.Printf("Сущность %d удалена\n", id)
		return nil
	},
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный id: %q", s)
	}
	return id, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return raw, nil
}

func init() {
	EntityCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "имя проекта")
	_ = EntityCmd.MarkPersistentFlagRequired("project")

	ListCmd.Flags().StringVarP(&listType, "type", "t", "", "тип сущности (scene, note, timeline_event, encyclopedia_entry, scene_draft)")
}
