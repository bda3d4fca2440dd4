package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wall_go/internal/config"
	"wall_go/internal/logger"
	"wall_go/pkg/storage"
)

// RootCmd собирает дерево команд wall.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wall",
		Short:         "Приём, модерация и публикация заявок стены",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "config.yaml", "путь к файлу конфигурации")

	root.AddCommand(ServeCmd())
	root.AddCommand(MigrateCmd())
	root.AddCommand(FlushCmd())
	root.AddCommand(ClearCmd())
	root.AddCommand(StatusCmd())
	return root
}

// env: общие зависимости команд.
type env struct {
	cfg *config.Store
	log *zap.Logger
	db  *storage.DB
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	_ = e.log.Sync()
}

// openEnv читает конфигурацию, поднимает логгер и подключается к БД со свежей схемой.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c := cfg.Current()
	log, err := logger.New(c.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := storage.Open(ctx, c.Database.Driver, c.Database.DSN)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}
