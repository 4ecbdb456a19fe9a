package moderation

import (
	"context"
	"fmt"

	"github.com/safestream/moderator/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const DefaultClassifyFrames = 5

type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Classifier labels a single frame. An empty result means nothing was detected,
// a service failure must be reported as ErrClassificationService.
type Classifier interface {
	Classify(ctx context.Context, framePath string) ([]Label, error)
}

// ClassifyFrames classifies the first limit frames concurrently. Results keep the frame order.
// Any failure cancels the remaining calls. A panicking classifier is reported as a stage error.
func ClassifyFrames(ctx context.Context, classifier Classifier, frames []string, limit int) ([][]Label, error) {
	if limit > 0 && len(frames) > limit {
		frames = frames[:limit]
	}

	results := make([][]Label, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	for i, frame := range frames {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = NewErrStage(StateAnalyzingVisuals, fmt.Errorf("panic: %v", p))
				}
			}()

			labels, err := classifier.Classify(gctx, frame)
			metrics.IncreaseClassifierCallsMetric(err)
			if err != nil {
				if isTyped(err) {
					return err
				}
				return NewErrClassificationService(err)
			}
			results[i] = labels
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
