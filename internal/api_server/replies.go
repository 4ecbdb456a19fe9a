package apiserver

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/safestream/moderator/internal/store/model"
)

type ErrorReply struct {
	HTTPStatusCode int    `json:"-"`
	Message        string `json:"message"`
}

func (e ErrorReply) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func newErrorReply(code int, err error) ErrorReply {
	return ErrorReply{HTTPStatusCode: code, Message: err.Error()}
}

type TriggerReply struct {
	JobID     string `json:"jobId"`
	Duplicate bool   `json:"duplicate"`
}

func (t TriggerReply) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusAccepted)
	return nil
}

type ModerationReply struct {
	CheckedAt      *time.Time `json:"checkedAt,omitempty"`
	VisualScore    float64    `json:"visualScore"`
	FramesAnalyzed int        `json:"framesAnalyzed"`
	LabelsFound    []string   `json:"labelsFound"`
	Flags          []string   `json:"flags"`
	DecisionReason string     `json:"decisionReason"`
}

type VideoReply struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	MediaLocator     string          `json:"mediaLocator"`
	Status           string          `json:"status"`
	ModerationStatus string          `json:"moderationStatus"`
	Moderation       ModerationReply `json:"moderation"`
	Duration         float64         `json:"duration"`
	ReviewedAt       *time.Time      `json:"reviewedAt,omitempty"`
	ReviewedBy       string          `json:"reviewedBy,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (v VideoReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func newVideoReply(v *model.Video) VideoReply {
	return VideoReply{
		ID:               v.ID,
		Title:            v.Title,
		Description:      v.Description,
		MediaLocator:     v.MediaLocator,
		Status:           string(v.Status),
		ModerationStatus: string(v.ModerationStatus),
		Moderation: ModerationReply{
			CheckedAt:      v.Moderation.CheckedAt,
			VisualScore:    v.Moderation.VisualScore,
			FramesAnalyzed: v.Moderation.FramesAnalyzed,
			LabelsFound:    nonNil(v.Moderation.LabelsFound),
			Flags:          nonNil(v.Moderation.Flags),
			DecisionReason: v.Moderation.DecisionReason,
		},
		Duration:   v.Duration,
		ReviewedAt: v.ReviewedAt,
		ReviewedBy: v.ReviewedBy,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

type SettingsReply struct {
	MaxFileSizeMB      int       `json:"maxFileSizeMB"`
	MaxDurationSeconds float64   `json:"maxDurationSeconds"`
	SupportedFormats   []string  `json:"supportedFormats"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (s SettingsReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func newSettingsReply(s *model.SystemSettings) SettingsReply {
	return SettingsReply{
		MaxFileSizeMB:      s.MaxFileSizeMB,
		MaxDurationSeconds: s.MaxDurationSeconds,
		SupportedFormats:   nonNil(s.SupportedFormats),
		UpdatedAt:          s.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
