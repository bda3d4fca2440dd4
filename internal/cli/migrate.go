package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Создать или обновить схему БД",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// схему накатывает openEnv
			e, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date (%s)\n",
				color.New(color.FgGreen).Sprint("✓"), e.db.Dialect)
			return nil
		},
	}
}
