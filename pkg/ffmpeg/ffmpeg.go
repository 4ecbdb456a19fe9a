package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
)

// FramePattern is the file name pattern of scene frames, numbered from 1 in detection order.
const FramePattern = "frame-%d.png"

var ErrNoDuration = errors.New("container reports no duration")

type Opts func(t *Tool)

func WithRunner(r Runner) Opts {
	return func(t *Tool) {
		t.runner = r
	}
}

func WithBinaries(ffmpegPath, ffprobePath string) Opts {
	return func(t *Tool) {
		t.ffmpeg = ffmpegPath
		t.ffprobe = ffprobePath
	}
}

// Tool drives the ffmpeg and ffprobe binaries.
type Tool struct {
	runner  Runner
	ffmpeg  string
	ffprobe string
}

func New(opts ...Opts) *Tool {
	t := &Tool{
		runner:  ExecRunner{},
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

type Metadata struct {
	Duration float64
	HasVideo bool
	HasAudio bool
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (t *Tool) Probe(ctx context.Context, src string) (Metadata, error) {
	out, err := t.runner.Run(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type",
		"-of", "json",
		src,
	)
	if err != nil {
		return Metadata{}, err
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return Metadata{}, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return Metadata{}, ErrNoDuration
	}

	md := Metadata{Duration: duration}
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			md.HasVideo = true
		case "audio":
			md.HasAudio = true
		}
	}
	return md, nil
}

// ExtractAudio writes the audio track of src as mp3 to dst.
func (t *Tool) ExtractAudio(ctx context.Context, src, dst string) error {
	_, err := t.runner.Run(ctx, t.ffmpeg,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-vn",
		"-acodec", "libmp3lame",
		dst,
	)
	return err
}

// ExtractSceneFrames writes a downscaled frame into dir for every scene change scoring above threshold.
func (t *Tool) ExtractSceneFrames(ctx context.Context, src, dir string, threshold float64, width int) error {
	filter := fmt.Sprintf("select='gt(scene,%s)',scale=%d:-1", strconv.FormatFloat(threshold, 'f', -1, 64), width)
	_, err := t.runner.Run(ctx, t.ffmpeg,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-vf", filter,
		"-vsync", "vfr",
		filepath.Join(dir, FramePattern),
	)
	return err
}

// Snapshot writes the first frame of src, downscaled, to dst.
func (t *Tool) Snapshot(ctx context.Context, src, dst string, width int) error {
	_, err := t.runner.Run(ctx, t.ffmpeg,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", width),
		dst,
	)
	return err
}
