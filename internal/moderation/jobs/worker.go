package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"
	"github.com/safestream/moderator/internal/moderation"
	"github.com/safestream/moderator/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultJobTimeout = 30 * time.Minute
	// snoozeDelay is how long a job waits when another run holds the same job id.
	snoozeDelay = 30 * time.Second
)

type ModerationWorker struct {
	river.WorkerDefaults[ModerationArgs]
	runner  moderation.Runner
	timeout time.Duration
}

func NewModerationWorker(runner moderation.Runner, timeout time.Duration) *ModerationWorker {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &ModerationWorker{runner: runner, timeout: timeout}
}

func (w *ModerationWorker) Timeout(job *river.Job[ModerationArgs]) time.Duration {
	return w.timeout
}

// Work runs the pipeline once. Stage failures are already persisted on the record and do not
// fail the job; only infrastructure errors are handed back to river for a retry.
func (w *ModerationWorker) Work(ctx context.Context, job *river.Job[ModerationArgs]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var opts []moderation.RunOption
	if job.Args.Force {
		opts = append(opts, moderation.WithForce())
	}

	outcome := w.runner.Run(ctx, job.Args.JobID, job.Args.MediaLocator, opts...)

	log := zap.S().Named("moderation_worker").With("job_id", job.Args.JobID, "river_job_id", job.ID, "attempt", job.Attempt)

	switch {
	case outcome.Skipped && outcome.Reason == moderation.SkipReasonRunning:
		log.Infow("job is held by another run, snoozing", "delay", snoozeDelay)
		return river.JobSnooze(snoozeDelay)
	case outcome.Skipped:
		log.Infow("job skipped", "reason", outcome.Reason)
		return nil
	case errors.Is(outcome.Err, store.ErrRecordNotFound), errors.Is(outcome.Err, moderation.ErrInvalidJobID):
		log.Warnw("cancelling job", "error", outcome.Err)
		return river.JobCancel(outcome.Err)
	case outcome.Err != nil:
		return outcome.Err
	}

	log.Infow("job finished", "status", outcome.Status, "moderation_status", outcome.ModerationStatus)
	return nil
}
