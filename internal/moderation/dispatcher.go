package moderation

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Runner interface {
	Run(ctx context.Context, jobID, mediaLocator string, opts ...RunOption) Outcome
}

// Dispatcher starts runs detached from the caller: cancelling the caller's context
// does not abort a run already started.
type Dispatcher struct {
	runner Runner
	wg     sync.WaitGroup
}

func NewDispatcher(runner Runner) *Dispatcher {
	return &Dispatcher{runner: runner}
}

func (d *Dispatcher) Dispatch(ctx context.Context, jobID, mediaLocator string, opts ...RunOption) {
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		outcome := d.runner.Run(detached, jobID, mediaLocator, opts...)
		zap.S().Named("dispatcher").Debugw("run finished", "job_id", jobID, "status", outcome.Status, "skipped", outcome.Skipped)
	}()
}

// Wait blocks until every dispatched run returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
