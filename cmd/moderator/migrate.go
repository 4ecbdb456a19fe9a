package main

import (
	"context"

	"github.com/safestream/moderator/internal/store"
	"github.com/safestream/moderator/pkg/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, undo, err := setup()
		if err != nil {
			return err
		}
		defer undo()

		ctx := context.Background()

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}
		s := store.NewStore(db)
		defer s.Close()

		if cfg.Database.Type != "pgsql" {
			if err := s.InitialMigration(ctx); err != nil {
				zap.S().Fatalw("running initial migration", "error", err)
			}
			zap.S().Info("sqlite schema is up to date")
			return nil
		}

		pool, err := newPgxPool(ctx, cfg)
		if err != nil {
			zap.S().Fatalw("initializing pgx pool", "error", err)
		}
		defer pool.Close()

		if err := migrations.MigrateStore(ctx, db, cfg.Service.MigrationFolder, pool); err != nil {
			zap.S().Fatalw("running migrations", "error", err)
		}

		zap.S().Info("migrations applied")
		return nil
	},
}
