package moderation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/safestream/moderator/internal/events"
	"github.com/safestream/moderator/internal/store"
	"github.com/safestream/moderator/internal/store/model"
	"github.com/safestream/moderator/pkg/metrics"
	"go.uber.org/zap"
)

const (
	progressDownloading = 10
	progressAudio       = 30
	progressFrames      = 50
	progressVisuals     = 70
	progressDone        = 100

	finalizeTimeout = 30 * time.Second
)

const (
	SkipReasonRunning  = "job is already running"
	SkipReasonReviewed = "job was reviewed manually"
)

// VideoStore is the part of the record store a run writes to.
type VideoStore interface {
	Get(ctx context.Context, id string) (*model.Video, error)
	UpdateStatus(ctx context.Context, id string, status model.VideoStatus) error
	UpdateDuration(ctx context.Context, id string, duration float64) error
	SaveVerdict(ctx context.Context, id string, status model.VideoStatus, moderationStatus model.ModerationStatus, detail model.ModerationDetail) error
	SaveFailure(ctx context.Context, id string, status model.VideoStatus, moderationStatus model.ModerationStatus, reason string, checkedAt time.Time) error
	ClearReview(ctx context.Context, id string) error
}

type Emitter interface {
	Emit(ctx context.Context, jobID string, status string, detail events.ProgressDetail)
}

// Timeouts bound each stage. A zero value leaves the stage unbounded.
type Timeouts struct {
	Download time.Duration
	Probe    time.Duration
	Audio    time.Duration
	Frames   time.Duration
	Classify time.Duration
}

// Outcome describes how a run ended. Err is set only when the run could not reach a persisted
// terminal state (invalid id, missing record, lock or store failure); stage failures are
// reported through Status and Reason.
type Outcome struct {
	JobID            string
	Status           model.VideoStatus
	ModerationStatus model.ModerationStatus
	Reason           string
	Skipped          bool
	Err              error
}

type runOptions struct {
	force bool
}

type RunOption func(o *runOptions)

// WithForce re-runs a job even when it was reviewed manually. The review marker is cleared.
func WithForce() RunOption {
	return func(o *runOptions) {
		o.force = true
	}
}

type OrchestratorOpts func(o *Orchestrator)

func WithLocker(l Locker) OrchestratorOpts {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

func WithTimeouts(t Timeouts) OrchestratorOpts {
	return func(o *Orchestrator) {
		o.timeouts = t
	}
}

func WithAggregator(a Aggregator) OrchestratorOpts {
	return func(o *Orchestrator) {
		o.aggregator = a
	}
}

func WithClassifyLimit(n int) OrchestratorOpts {
	return func(o *Orchestrator) {
		o.classifyLimit = n
	}
}

// Orchestrator runs the moderation pipeline of one job at a time per job id.
type Orchestrator struct {
	videos        VideoStore
	workspace     *Workspace
	acquirer      *Acquirer
	decomposer    *Decomposer
	classifier    Classifier
	emitter       Emitter
	locker        Locker
	aggregator    Aggregator
	timeouts      Timeouts
	classifyLimit int
}

func NewOrchestrator(videos VideoStore, workspace *Workspace, acquirer *Acquirer, decomposer *Decomposer, classifier Classifier, emitter Emitter, opts ...OrchestratorOpts) *Orchestrator {
	o := &Orchestrator{
		videos:        videos,
		workspace:     workspace,
		acquirer:      acquirer,
		decomposer:    decomposer,
		classifier:    classifier,
		emitter:       emitter,
		locker:        NewMemoryLocker(),
		aggregator:    NewAggregator(DefaultFlagConfidence),
		classifyLimit: DefaultClassifyFrames,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run holds the state of one pipeline execution.
type run struct {
	jobID     string
	locator   string
	video     *model.Video
	artifacts Artifacts
	sm        *stateMachine
	log       *zap.SugaredLogger

	duration float64
	frames   []string
}

// Run moderates one job. It never panics and never returns an error: the result is persisted
// on the record and reported through progress events. An empty mediaLocator falls back to
// the locator stored on the record.
func (o *Orchestrator) Run(ctx context.Context, jobID, mediaLocator string, opts ...RunOption) Outcome {
	start := time.Now()
	defer metrics.TrackRunInFlight()()

	outcome := o.run(ctx, jobID, mediaLocator, opts...)

	switch {
	case outcome.Skipped:
		metrics.IncreaseRunsTotalMetric("skipped")
	case outcome.Err != nil && outcome.Status == "":
		metrics.IncreaseRunsTotalMetric("error")
	default:
		metrics.IncreaseRunsTotalMetric(string(outcome.Status))
		metrics.ObserveRunDuration(time.Since(start))
	}
	return outcome
}

func (o *Orchestrator) run(ctx context.Context, jobID, mediaLocator string, opts ...RunOption) Outcome {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	log := zap.S().Named("orchestrator").With("job_id", jobID)
	outcome := Outcome{JobID: jobID}

	if _, err := o.workspace.Artifacts(jobID); err != nil {
		log.Errorw("refusing to run job", "error", err)
		outcome.Err = err
		return outcome
	}

	release, ok, err := o.locker.TryLock(ctx, jobID)
	if err != nil {
		log.Errorw("failed to acquire job lock", "error", err)
		outcome.Err = err
		return outcome
	}
	if !ok {
		log.Infow("job is already running, skipping")
		outcome.Skipped = true
		outcome.Reason = SkipReasonRunning
		return outcome
	}
	defer release()

	defer func() {
		if err := o.workspace.Clean(jobID); err != nil {
			log.Errorw("failed to clean job artifacts", "error", err)
		}
	}()

	video, err := o.videos.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			log.Warnw("job record not found")
		} else {
			log.Errorw("failed to read job record", "error", err)
		}
		outcome.Err = err
		return outcome
	}

	if video.IsReviewed() {
		if !ro.force {
			log.Infow("job was reviewed manually, skipping", "reviewed_by", video.ReviewedBy)
			outcome.Skipped = true
			outcome.Status = video.Status
			outcome.ModerationStatus = video.ModerationStatus
			outcome.Reason = SkipReasonReviewed
			return outcome
		}
		if err := o.videos.ClearReview(ctx, jobID); err != nil {
			log.Errorw("failed to clear manual review", "error", err)
			outcome.Err = err
			return outcome
		}
	}

	if mediaLocator == "" {
		mediaLocator = video.MediaLocator
	}

	r := &run{
		jobID:   jobID,
		locator: mediaLocator,
		video:   video,
		sm:      newStateMachine(),
		log:     log,
	}

	verdict, err := o.execute(ctx, r)
	if err != nil {
		return o.fail(ctx, r, err)
	}
	return o.complete(ctx, r, verdict)
}

// execute walks the stages. Panics are turned into a stage error of the current stage.
func (o *Orchestrator) execute(ctx context.Context, r *run) (verdict Verdict, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Errorw("recovered from panic", "stage", r.sm.Current(), "panic", p, "stack", string(debug.Stack()))
			err = NewErrStage(r.sm.Current(), fmt.Errorf("panic: %v", p))
		}
	}()

	if err := r.sm.advance(StateProcessing); err != nil {
		return Verdict{}, err
	}
	if err := o.videos.UpdateStatus(ctx, r.jobID, model.VideoStatusProcessing); err != nil {
		return Verdict{}, NewErrStage(StateProcessing, err)
	}

	artifacts, err := o.workspace.Prepare(r.jobID)
	if err != nil {
		return Verdict{}, NewErrStage(StateProcessing, err)
	}
	r.artifacts = artifacts

	var settings *model.SystemSettings
	o.checkpoint(ctx, r.jobID, StateDownloading, progressDownloading)
	if err := o.stage(ctx, r, StateDownloading, o.timeouts.Download, func(ctx context.Context) error {
		s, err := o.acquirer.Fetch(ctx, r.locator, r.artifacts.Video)
		settings = s
		return err
	}); err != nil {
		return Verdict{}, err
	}

	if err := o.stage(ctx, r, StateProbing, o.timeouts.Probe, func(ctx context.Context) error {
		d, err := o.acquirer.Probe(ctx, r.artifacts.Video, settings)
		r.duration = d
		return err
	}); err != nil {
		return Verdict{}, err
	}
	if err := o.videos.UpdateDuration(ctx, r.jobID, r.duration); err != nil {
		r.log.Warnw("failed to persist duration", "error", err)
	}

	o.checkpoint(ctx, r.jobID, StateExtractingAudio, progressAudio)
	if err := o.stage(ctx, r, StateExtractingAudio, o.timeouts.Audio, func(ctx context.Context) error {
		_, err := o.decomposer.ExtractAudio(ctx, r.artifacts.Video, r.artifacts.Audio)
		return err
	}); err != nil {
		return Verdict{}, err
	}

	o.checkpoint(ctx, r.jobID, StateExtractingFrames, progressFrames)
	if err := o.stage(ctx, r, StateExtractingFrames, o.timeouts.Frames, func(ctx context.Context) error {
		frames, err := o.decomposer.ExtractFrames(ctx, r.artifacts.Video, r.artifacts.Frames)
		r.frames = frames
		return err
	}); err != nil {
		return Verdict{}, err
	}

	var labels [][]Label
	o.checkpoint(ctx, r.jobID, StateAnalyzingVisuals, progressVisuals)
	if err := o.stage(ctx, r, StateAnalyzingVisuals, o.timeouts.Classify, func(ctx context.Context) error {
		l, err := ClassifyFrames(ctx, o.classifier, r.frames, o.classifyLimit)
		labels = l
		return err
	}); err != nil {
		return Verdict{}, err
	}

	if err := r.sm.advance(StateDeciding); err != nil {
		return Verdict{}, err
	}
	return o.aggregator.Aggregate(labels, r.video.Title, r.video.Description), nil
}

// stage runs fn under the stage timeout. Untyped failures and timeouts become ErrStage.
func (o *Orchestrator) stage(ctx context.Context, r *run, state State, timeout time.Duration, fn func(ctx context.Context) error) error {
	if err := r.sm.advance(state); err != nil {
		return err
	}

	stageCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now()
	err := fn(stageCtx)
	metrics.ObserveStageDuration(string(state), time.Since(start), err)
	if err == nil {
		return nil
	}

	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return NewErrStage(state, fmt.Errorf("timed out after %s: %w", timeout, err))
	}
	if !isTyped(err) {
		return NewErrStage(state, err)
	}
	return err
}

func (o *Orchestrator) complete(ctx context.Context, r *run, verdict Verdict) Outcome {
	status := model.VideoStatusSafe
	moderationStatus := model.ModerationStatusApproved
	if verdict.Unsafe {
		status = model.VideoStatusFlagged
		moderationStatus = model.ModerationStatusPending
	}

	checkedAt := time.Now()
	detail := model.ModerationDetail{
		CheckedAt:      &checkedAt,
		VisualScore:    verdict.VisualScore,
		FramesAnalyzed: len(r.frames),
		LabelsFound:    verdict.Labels,
		Flags:          verdict.Flags,
		DecisionReason: verdict.Reason,
	}

	outcome := Outcome{JobID: r.jobID, Status: status, ModerationStatus: moderationStatus, Reason: verdict.Reason}

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	_ = r.sm.advance(StateTerminal)
	if err := o.videos.SaveVerdict(finalCtx, r.jobID, status, moderationStatus, detail); err != nil {
		r.log.Errorw("failed to persist verdict", "status", status, "error", err)
		outcome.Err = err
	}

	r.log.Infow("moderation completed", "status", status, "moderation_status", moderationStatus,
		"frames", len(r.frames), "labels", verdict.Labels, "reason", verdict.Reason)
	o.emit(finalCtx, r.jobID, string(status), events.ProgressDetail{Progress: progressDone, ModerationStatus: string(moderationStatus)})
	return outcome
}

func (o *Orchestrator) fail(ctx context.Context, r *run, cause error) Outcome {
	status := model.VideoStatusFlagged
	moderationStatus := model.ModerationStatusPending
	if IsDurationExceeded(cause) {
		status = model.VideoStatusFailed
		moderationStatus = model.ModerationStatusFailed
	}
	reason := cause.Error()

	r.log.Errorw("moderation failed", "stage", r.sm.Current(), "status", status, "error", cause)

	outcome := Outcome{JobID: r.jobID, Status: status, ModerationStatus: moderationStatus, Reason: reason}

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	_ = r.sm.advance(StateTerminal)
	if err := o.videos.SaveFailure(finalCtx, r.jobID, status, moderationStatus, reason, time.Now()); err != nil {
		r.log.Errorw("failed to persist failure", "status", status, "error", err)
		outcome.Err = err
	}

	o.emit(finalCtx, r.jobID, string(status), events.ProgressDetail{
		Progress:         progressDone,
		Error:            reason,
		ModerationStatus: string(moderationStatus),
	})
	return outcome
}

// checkpoint reports that the run entered stage. The record is still processing.
func (o *Orchestrator) checkpoint(ctx context.Context, jobID string, stage State, progress int) {
	o.emit(ctx, jobID, string(model.VideoStatusProcessing), events.ProgressDetail{Stage: string(stage), Progress: progress})
}

// emit publishes a progress event. It cannot fail the run.
func (o *Orchestrator) emit(ctx context.Context, jobID string, status string, detail events.ProgressDetail) {
	if o.emitter == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			zap.S().Named("orchestrator").Warnw("progress emitter panicked", "job_id", jobID, "panic", p)
		}
	}()

	o.emitter.Emit(ctx, jobID, status, detail)
	metrics.IncreaseProgressEventsMetric(status)
}
