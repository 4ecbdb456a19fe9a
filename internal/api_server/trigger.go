package apiserver

import (
	"context"

	"github.com/safestream/moderator/internal/moderation"
	"github.com/safestream/moderator/internal/moderation/jobs"
)

// Trigger starts a moderation run. duplicate reports that an identical run was already pending.
type Trigger interface {
	Trigger(ctx context.Context, args jobs.ModerationArgs) (duplicate bool, err error)
}

type jobInserter interface {
	InsertJob(ctx context.Context, args jobs.ModerationArgs) (int64, bool, error)
}

// QueueTrigger inserts a durable job.
type QueueTrigger struct {
	inserter jobInserter
}

func NewQueueTrigger(inserter jobInserter) *QueueTrigger {
	return &QueueTrigger{inserter: inserter}
}

func (q *QueueTrigger) Trigger(ctx context.Context, args jobs.ModerationArgs) (bool, error) {
	_, duplicate, err := q.inserter.InsertJob(ctx, args)
	return duplicate, err
}

// DispatchTrigger runs the job in-process, detached from the request.
type DispatchTrigger struct {
	dispatcher *moderation.Dispatcher
}

func NewDispatchTrigger(dispatcher *moderation.Dispatcher) *DispatchTrigger {
	return &DispatchTrigger{dispatcher: dispatcher}
}

func (d *DispatchTrigger) Trigger(ctx context.Context, args jobs.ModerationArgs) (bool, error) {
	var opts []moderation.RunOption
	if args.Force {
		opts = append(opts, moderation.WithForce())
	}
	d.dispatcher.Dispatch(ctx, args.JobID, args.MediaLocator, opts...)
	return false, nil
}
