package store

import (
	"context"
	"errors"
	"time"

	"github.com/safestream/moderator/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Video interface {
	Get(ctx context.Context, id string) (*model.Video, error)
	Save(ctx context.Context, video model.Video) (*model.Video, error)
	UpdateStatus(ctx context.Context, id string, status model.VideoStatus) error
	SyncStatus(ctx context.Context, id string, status model.VideoStatus) (*model.Video, error)
	UpdateDuration(ctx context.Context, id string, duration float64) error
	SaveVerdict(ctx context.Context, id string, status model.VideoStatus, moderationStatus model.ModerationStatus, detail model.ModerationDetail) error
	SaveFailure(ctx context.Context, id string, status model.VideoStatus, moderationStatus model.ModerationStatus, reason string, checkedAt time.Time) error
	RecordReview(ctx context.Context, id string, approve bool, reviewer string) (*model.Video, error)
	ClearReview(ctx context.Context, id string) error
	InitialMigration(ctx context.Context) error
}

type VideoStore struct {
	db *gorm.DB
}

var _ Video = (*VideoStore)(nil)

func NewVideoStore(db *gorm.DB) Video {
	return &VideoStore{db: db}
}

func (v *VideoStore) InitialMigration(ctx context.Context) error {
	return v.getDB(ctx).AutoMigrate(&model.Video{})
}

func (v *VideoStore) Get(ctx context.Context, id string) (*model.Video, error) {
	video := model.Video{ID: id}
	if err := v.getDB(ctx).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &video, nil
}

// Save inserts the video or overwrites every column of an existing one.
func (v *VideoStore) Save(ctx context.Context, video model.Video) (*model.Video, error) {
	if video.Status == "" {
		video.Status = model.VideoStatusPending
	}
	if video.ModerationStatus == "" {
		video.ModerationStatus = model.ModerationStatusPending
	}

	result := v.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&video)
	if result.Error != nil {
		return nil, result.Error
	}
	return &video, nil
}

// UpdateStatus writes the status column only.
func (v *VideoStore) UpdateStatus(ctx context.Context, id string, status model.VideoStatus) error {
	return v.update(ctx, id, map[string]any{"status": status})
}

// SyncStatus applies an external status edit and derives the moderation status from it.
func (v *VideoStore) SyncStatus(ctx context.Context, id string, status model.VideoStatus) (*model.Video, error) {
	if err := v.update(ctx, id, map[string]any{
		"status":            status,
		"moderation_status": model.ModerationStatusFor(status),
	}); err != nil {
		return nil, err
	}
	return v.Get(ctx, id)
}

func (v *VideoStore) UpdateDuration(ctx context.Context, id string, duration float64) error {
	return v.update(ctx, id, map[string]any{"duration": duration})
}

// SaveVerdict overwrites the whole moderation detail together with both statuses.
func (v *VideoStore) SaveVerdict(ctx context.Context, id string, status model.VideoStatus, moderationStatus model.ModerationStatus, detail model.ModerationDetail) error {
	if detail.LabelsFound == nil {
		detail.LabelsFound = []string{}
	}
	if detail.Flags == nil {
		detail.Flags = []string{}
	}

	result := v.getDB(ctx).Model(&model.Video{ID: id}).
		Select(
			"status",
			"moderation_status",
			"moderation_checked_at",
			"moderation_visual_score",
			"moderation_frames_analyzed",
			"moderation_labels_found",
			"moderation_flags",
			"moderation_decision_reason",
		).
		Updates(model.Video{
			Status:           status,
			ModerationStatus: moderationStatus,
			Moderation:       detail,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SaveFailure records a failed run. Labels and score of a previous run are kept.
func (v *VideoStore) SaveFailure(ctx context.Context, id string, status model.VideoStatus, moderationStatus model.ModerationStatus, reason string, checkedAt time.Time) error {
	return v.update(ctx, id, map[string]any{
		"status":                     status,
		"moderation_status":          moderationStatus,
		"moderation_decision_reason": reason,
		"moderation_checked_at":      checkedAt,
	})
}

// RecordReview stores a manual decision. Approval publishes the video, rejection fails it.
func (v *VideoStore) RecordReview(ctx context.Context, id string, approve bool, reviewer string) (*model.Video, error) {
	status := model.VideoStatusFailed
	moderationStatus := model.ModerationStatusRejected
	if approve {
		status = model.VideoStatusSafe
		moderationStatus = model.ModerationStatusApproved
	}

	if err := v.update(ctx, id, map[string]any{
		"status":            status,
		"moderation_status": moderationStatus,
		"reviewed_at":       time.Now(),
		"reviewed_by":       reviewer,
	}); err != nil {
		return nil, err
	}
	return v.Get(ctx, id)
}

func (v *VideoStore) ClearReview(ctx context.Context, id string) error {
	return v.update(ctx, id, map[string]any{
		"reviewed_at": nil,
		"reviewed_by": "",
	})
}

func (v *VideoStore) update(ctx context.Context, id string, columns map[string]any) error {
	result := v.getDB(ctx).Model(&model.Video{ID: id}).Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (v *VideoStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return v.db.WithContext(ctx)
}
