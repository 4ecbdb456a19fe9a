package moderation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	DefaultSceneThreshold = 0.15
	DefaultFrameWidth     = 320
	DefaultMaxFrames      = 15

	fallbackFrame = "fallback.png"
)

type MediaTool interface {
	ExtractAudio(ctx context.Context, src, dst string) error
	ExtractSceneFrames(ctx context.Context, src, dir string, threshold float64, width int) error
	Snapshot(ctx context.Context, src, dst string, width int) error
}

type DecomposerOpts func(d *Decomposer)

func WithSceneThreshold(threshold float64) DecomposerOpts {
	return func(d *Decomposer) {
		d.threshold = threshold
	}
}

func WithFrameWidth(width int) DecomposerOpts {
	return func(d *Decomposer) {
		d.width = width
	}
}

func WithMaxFrames(n int) DecomposerOpts {
	return func(d *Decomposer) {
		d.maxFrames = n
	}
}

// Decomposer derives the audio track and representative frames of a video.
type Decomposer struct {
	tool      MediaTool
	threshold float64
	width     int
	maxFrames int
}

func NewDecomposer(tool MediaTool, opts ...DecomposerOpts) *Decomposer {
	d := &Decomposer{
		tool:      tool,
		threshold: DefaultSceneThreshold,
		width:     DefaultFrameWidth,
		maxFrames: DefaultMaxFrames,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ExtractAudio is best effort: on failure it logs and returns an empty path with no error.
func (d *Decomposer) ExtractAudio(ctx context.Context, src, dst string) (string, error) {
	if err := d.tool.ExtractAudio(ctx, src, dst); err != nil {
		zap.S().Named("decomposer").Warnw("audio extraction failed, continuing without audio", "src", src, "error", err)
		_ = os.Remove(dst)
		return "", nil
	}
	return dst, nil
}

// ExtractFrames samples scene changes of src into dir and returns the retained frames in detection order.
// At least one frame is returned for a decodable video and never more than the frame cap.
func (d *Decomposer) ExtractFrames(ctx context.Context, src, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, NewErrStage(StateExtractingFrames, err)
	}

	if err := d.tool.ExtractSceneFrames(ctx, src, dir, d.threshold, d.width); err != nil {
		return nil, NewErrStage(StateExtractingFrames, err)
	}

	frames, err := listFrames(dir)
	if err != nil {
		return nil, NewErrStage(StateExtractingFrames, err)
	}

	if len(frames) == 0 {
		zap.S().Named("decomposer").Infow("no scene change detected, taking a single snapshot", "src", src)
		fallback := filepath.Join(dir, fallbackFrame)
		if err := d.tool.Snapshot(ctx, src, fallback, d.width); err != nil {
			return nil, NewErrStage(StateExtractingFrames, err)
		}
		if _, err := os.Stat(fallback); err != nil {
			return nil, NewErrStage(StateExtractingFrames, errors.New("no frame could be extracted"))
		}
		return []string{fallback}, nil
	}

	if d.maxFrames > 0 && len(frames) > d.maxFrames {
		for _, f := range frames[d.maxFrames:] {
			if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
				zap.S().Named("decomposer").Warnw("failed to discard frame", "frame", f, "error", err)
			}
		}
		frames = frames[:d.maxFrames]
	}

	return frames, nil
}

// listFrames returns frame-N.png files of dir sorted by N.
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type frame struct {
		index int
		path  string
	}

	var frames []frame
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "frame-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "frame-"), ".png"))
		if err != nil {
			continue
		}
		frames = append(frames, frame{index: idx, path: filepath.Join(dir, name)})
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].index < frames[j].index })

	paths := make([]string, 0, len(frames))
	for _, f := range frames {
		paths = append(paths, f.path)
	}
	return paths, nil
}
