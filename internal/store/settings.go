package store

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/safestream/moderator/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Settings interface {
	Get(ctx context.Context) (*model.SystemSettings, error)
	Update(ctx context.Context, settings model.SystemSettings) (*model.SystemSettings, error)
	InitialMigration(ctx context.Context) error
}

type SettingsStore struct {
	db       *gorm.DB
	validate *validator.Validate
}

var _ Settings = (*SettingsStore)(nil)

func NewSettingsStore(db *gorm.DB) Settings {
	return &SettingsStore{db: db, validate: validator.New()}
}

func (s *SettingsStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.SystemSettings{})
}

// Get returns the settings row, creating it with defaults on first access.
func (s *SettingsStore) Get(ctx context.Context) (*model.SystemSettings, error) {
	settings := model.SystemSettings{ID: model.SystemSettingsID}
	err := s.getDB(ctx).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	settings = model.DefaultSystemSettings()
	if err := s.getDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *SettingsStore) Update(ctx context.Context, settings model.SystemSettings) (*model.SystemSettings, error) {
	if err := s.validate.Struct(settings); err != nil {
		return nil, NewErrInvalidSettings(err)
	}

	settings.ID = model.SystemSettingsID
	if err := s.getDB(ctx).Save(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *SettingsStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
