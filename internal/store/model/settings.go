package model

import (
	"time"
)

const SystemSettingsID = 1

// SystemSettings is a singleton row read fresh by every moderation run.
type SystemSettings struct {
	ID                 int      `gorm:"primaryKey"`
	MaxFileSizeMB      int      `validate:"gte=1,lte=10240"`
	MaxDurationSeconds float64  `validate:"gt=0"`
	SupportedFormats   []string `gorm:"serializer:json" validate:"min=1,dive,required,contains=/"`
	UpdatedAt          time.Time
}

func (SystemSettings) TableName() string {
	return "system_settings"
}

func DefaultSystemSettings() SystemSettings {
	return SystemSettings{
		ID:                 SystemSettingsID,
		MaxFileSizeMB:      100,
		MaxDurationSeconds: 600,
		SupportedFormats: []string{
			"video/mp4",
			"video/mpeg",
			"video/quicktime",
			"video/x-msvideo",
			"video/x-matroska",
			"video/webm",
		},
	}
}

func (s SystemSettings) MaxFileSizeBytes() int64 {
	return int64(s.MaxFileSizeMB) * 1024 * 1024
}

func (s SystemSettings) IsFormatSupported(contentType string) bool {
	for _, f := range s.SupportedFormats {
		if f == contentType {
			return true
		}
	}
	return false
}
