package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/marketplace-backend/internal/config"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/logger"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

// env общие зависимости подкоманд. Подключение к базе открывается лениво,
// чтобы --help работал без конфигурации.
type env struct {
	configPath string
	cfg        *config.Config
	log        *slog.Logger
	db         *storage.Storage
}

func newRootCmd() *cobra.Command {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:           "marketplacectl",
		Short:         "Administrative tasks for the marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			e.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&e.configPath, "config", "", "path to config file (defaults to CONFIG_PATH)")

	rootCmd.AddCommand(
		newMigrateCmd(e),
		newCreateSuperuserCmd(e),
		newSeedPlansCmd(e),
		newSyncPlansCmd(e),
	)
	return rootCmd
}

func (e *env) load() error {
	if e.cfg != nil {
		return nil
	}
	var (
		cfg *config.Config
		err error
	)
	if e.configPath != "" {
		cfg, err = config.Load(e.configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.MustLoad()
	}
	e.cfg = cfg
	e.log = logger.Setup(cfg.Env)
	return nil
}

func (e *env) storage(_ context.Context) (*storage.Storage, error) {
	if e.db != nil {
		return e.db, nil
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	db, err := storage.New(e.cfg.StorageConnectionString, e.log)
	if err != nil {
		return nil, err
	}
	e.db = db
	return db, nil
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
		e.db = nil
	}
}
