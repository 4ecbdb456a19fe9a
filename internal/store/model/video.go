package model

import (
	"encoding/json"
	"time"
)

type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusSafe       VideoStatus = "safe"
	VideoStatusFlagged    VideoStatus = "flagged"
	VideoStatusFailed     VideoStatus = "failed"
)

func (s VideoStatus) IsTerminal() bool {
	switch s {
	case VideoStatusSafe, VideoStatusFlagged, VideoStatusFailed:
		return true
	}
	return false
}

type ModerationStatus string

const (
	ModerationStatusPending  ModerationStatus = "pending"
	ModerationStatusApproved ModerationStatus = "approved"
	ModerationStatusRejected ModerationStatus = "rejected"
	// ModerationStatusFailed marks a record whose media could not be moderated at all
	// (duration limit). It is never produced by a manual review.
	ModerationStatusFailed ModerationStatus = "failed"
)

// ModerationStatusFor returns the moderation status implied by an externally edited video status.
func ModerationStatusFor(status VideoStatus) ModerationStatus {
	switch status {
	case VideoStatusSafe:
		return ModerationStatusApproved
	case VideoStatusFailed:
		return ModerationStatusRejected
	default:
		return ModerationStatusPending
	}
}

// ModerationDetail is the outcome of the last automatic run.
type ModerationDetail struct {
	CheckedAt      *time.Time
	VisualScore    float64
	FramesAnalyzed int
	LabelsFound    []string `gorm:"serializer:json"`
	Flags          []string `gorm:"serializer:json"`
	DecisionReason string
}

type Video struct {
	ID               string `gorm:"primaryKey"`
	Title            string
	Description      string
	MediaLocator     string
	Status           VideoStatus      `gorm:"default:pending"`
	ModerationStatus ModerationStatus `gorm:"default:pending"`
	Moderation       ModerationDetail `gorm:"embedded;embeddedPrefix:moderation_"`
	Duration         float64
	ReviewedAt       *time.Time
	ReviewedBy       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type VideoList []Video

func (v Video) String() string {
	val, _ := json.Marshal(v)
	return string(val)
}

func (v Video) IsReviewed() bool {
	return v.ReviewedAt != nil
}
