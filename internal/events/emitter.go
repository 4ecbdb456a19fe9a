package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"
)

type eventWriter interface {
	Write(ctx context.Context, kind string, subject string, body io.Reader) error
}

// ProgressEmitter publishes progress events for a job. Emit never fails: errors are only logged.
type ProgressEmitter struct {
	writer eventWriter
}

func NewProgressEmitter(w eventWriter) *ProgressEmitter {
	return &ProgressEmitter{writer: w}
}

func (p *ProgressEmitter) Emit(ctx context.Context, jobID string, status string, detail ProgressDetail) {
	if p == nil || p.writer == nil {
		return
	}

	data, err := json.Marshal(ProgressEvent{
		JobID:     jobID,
		Status:    status,
		Detail:    detail,
		Timestamp: time.Now(),
	})
	if err != nil {
		zap.S().Named("progress_emitter").Warnw("failed to encode progress event", "job_id", jobID, "error", err)
		return
	}

	if err := p.writer.Write(ctx, ProgressMessageKind, jobID, bytes.NewReader(data)); err != nil {
		zap.S().Named("progress_emitter").Warnw("failed to emit progress event", "job_id", jobID, "status", status, "error", err)
	}
}
