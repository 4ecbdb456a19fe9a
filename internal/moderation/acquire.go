package moderation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/safestream/moderator/internal/store/model"
	"github.com/safestream/moderator/pkg/download"
	"github.com/safestream/moderator/pkg/ffmpeg"
	"go.uber.org/zap"
)

type SettingsProvider interface {
	Get(ctx context.Context) (*model.SystemSettings, error)
}

type Fetcher interface {
	Download(ctx context.Context, locator string, dst io.Writer, opts ...download.Option) error
}

type Prober interface {
	Probe(ctx context.Context, src string) (ffmpeg.Metadata, error)
}

// Acquirer fetches the media of a job and validates its duration against the current settings.
type Acquirer struct {
	fetcher  Fetcher
	prober   Prober
	settings SettingsProvider
}

func NewAcquirer(fetcher Fetcher, prober Prober, settings SettingsProvider) *Acquirer {
	return &Acquirer{fetcher: fetcher, prober: prober, settings: settings}
}

// Acquire streams mediaLocator to destPath and returns the probed duration in seconds.
func (a *Acquirer) Acquire(ctx context.Context, mediaLocator, destPath string) (float64, error) {
	settings, err := a.Fetch(ctx, mediaLocator, destPath)
	if err != nil {
		return 0, err
	}
	return a.Probe(ctx, destPath, settings)
}

// Fetch streams the media to destPath under the size and format limits of freshly read settings.
// The settings used are returned for the probe step.
func (a *Acquirer) Fetch(ctx context.Context, mediaLocator, destPath string) (*model.SystemSettings, error) {
	settings, err := a.settings.Get(ctx)
	if err != nil {
		return nil, NewErrStage(StateDownloading, fmt.Errorf("failed to read system settings: %w", err))
	}

	f, err := os.Create(destPath)
	if err != nil {
		return nil, NewErrStage(StateDownloading, err)
	}

	err = a.fetcher.Download(ctx, mediaLocator, f,
		download.WithMaxBytes(settings.MaxFileSizeBytes()),
		download.WithAcceptedTypes(settings.IsFormatSupported),
	)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, NewErrAcquisition(err)
	}

	return settings, nil
}

// Probe reads the duration of the local media and enforces the configured maximum.
func (a *Acquirer) Probe(ctx context.Context, path string, settings *model.SystemSettings) (float64, error) {
	md, err := a.prober.Probe(ctx, path)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, NewErrStage(StateProbing, err)
		}
		return 0, NewErrProbe(err)
	}

	zap.S().Named("acquirer").Debugw("media probed", "path", path, "duration", md.Duration, "has_audio", md.HasAudio)

	if md.Duration > settings.MaxDurationSeconds {
		return md.Duration, NewErrDurationExceeded(md.Duration, settings.MaxDurationSeconds)
	}
	return md.Duration, nil
}
