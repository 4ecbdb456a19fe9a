package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Video() Video
	Settings() Settings
	InitialMigration(ctx context.Context) error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	video    Video
	settings Settings
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:       db,
		video:    NewVideoStore(db),
		settings: NewSettingsStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Video() Video {
	return s.video
}

func (s *DataStore) Settings() Settings {
	return s.settings
}

// InitialMigration creates the schema with gorm. Used for sqlite and tests; postgres
// deployments run the goose migrations instead.
func (s *DataStore) InitialMigration(ctx context.Context) error {
	return withTransaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.Video().InitialMigration(ctx); err != nil {
			return err
		}
		return s.Settings().InitialMigration(ctx)
	})
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
