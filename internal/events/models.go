package events

import "time"

// ProgressEvent is the payload of a moderation progress message.
type ProgressEvent struct {
	JobID     string         `json:"jobId"`
	Status    string         `json:"status"`
	Detail    ProgressDetail `json:"detail"`
	Timestamp time.Time      `json:"timestamp"`
}

type ProgressDetail struct {
	Stage            string `json:"stage,omitempty"`
	Progress         int    `json:"progress,omitempty"`
	Error            string `json:"error,omitempty"`
	ModerationStatus string `json:"moderationStatus,omitempty"`
}
