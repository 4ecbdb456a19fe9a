package jobs

import (
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	DefaultQueue       = "moderation"
	DefaultMaxAttempts = 3
	JobKind            = "video_moderation"
)

// ModerationArgs is stored in river_job.args as JSON.
type ModerationArgs struct {
	JobID        string `json:"job_id"`
	MediaLocator string `json:"media_locator,omitempty"`
	Force        bool   `json:"force,omitempty"`
}

func (ModerationArgs) Kind() string {
	return JobKind
}

// InsertOpts keeps a single unfinished job per argument set.
func (ModerationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: DefaultMaxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRetryable,
				rivertype.JobStateRunning,
				rivertype.JobStateScheduled,
			},
		},
	}
}
