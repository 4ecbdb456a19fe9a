package moderation_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/safestream/moderator/internal/moderation"
	"github.com/safestream/moderator/internal/store/model"
	"github.com/safestream/moderator/pkg/download"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type staticSettings struct {
	settings model.SystemSettings
	err      error
	calls    int
}

func (s *staticSettings) Get(_ context.Context) (*model.SystemSettings, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	copied := s.settings
	return &copied, nil
}

// requestRecorder keeps the request built from the download options.
type requestRecorder struct {
	req download.Request
}

func (r *requestRecorder) Download(_ context.Context, _ string, dst io.Writer, opts ...download.Option) error {
	for _, o := range opts {
		o(&r.req)
	}
	_, err := dst.Write([]byte("video"))
	return err
}

var _ = Describe("acquirer", func() {
	var (
		settings *staticSettings
		dest     string
	)

	BeforeEach(func() {
		settings = &staticSettings{settings: model.DefaultSystemSettings()}
		dest = filepath.Join(GinkgoT().TempDir(), "video.mp4")
	})

	It("downloads and returns the duration", func() {
		a := moderation.NewAcquirer(&fakeFetcher{payload: []byte("video")}, &fakeProber{duration: 12.5}, settings)

		duration, err := a.Acquire(context.TODO(), "https://cdn.example.com/a.mp4", dest)
		Expect(err).To(BeNil())
		Expect(duration).To(Equal(12.5))

		content, err := os.ReadFile(dest)
		Expect(err).To(BeNil())
		Expect(string(content)).To(Equal("video"))
	})

	It("passes the size and format limits to the download", func() {
		rec := &requestRecorder{}
		settings.settings.MaxFileSizeMB = 2
		a := moderation.NewAcquirer(rec, &fakeProber{duration: 1}, settings)

		_, err := a.Acquire(context.TODO(), "https://cdn.example.com/a.mp4", dest)
		Expect(err).To(BeNil())
		Expect(rec.req.MaxBytes).To(Equal(int64(2 * 1024 * 1024)))
		Expect(rec.req.Accept("video/mp4")).To(BeTrue())
		Expect(rec.req.Accept("image/png")).To(BeFalse())
	})

	It("wraps download failures", func() {
		a := moderation.NewAcquirer(&fakeFetcher{err: errBoom}, &fakeProber{duration: 1}, settings)

		_, err := a.Acquire(context.TODO(), "https://cdn.example.com/a.mp4", dest)
		var target *moderation.ErrAcquisition
		Expect(errors.As(err, &target)).To(BeTrue())
		Expect(err).To(MatchError(errBoom))
		Expect(err.Error()).To(HavePrefix("failed to download media"))
	})

	It("rejects media longer than the limit", func() {
		settings.settings.MaxDurationSeconds = 600
		a := moderation.NewAcquirer(&fakeFetcher{payload: []byte("video")}, &fakeProber{duration: 700}, settings)

		duration, err := a.Acquire(context.TODO(), "https://cdn.example.com/a.mp4", dest)
		Expect(moderation.IsDurationExceeded(err)).To(BeTrue())
		Expect(err.Error()).To(Equal("Video too long (700s). Limit is 600s."))
		Expect(duration).To(Equal(700.0))
	})

	It("accepts media exactly at the limit", func() {
		settings.settings.MaxDurationSeconds = 600
		a := moderation.NewAcquirer(&fakeFetcher{payload: []byte("video")}, &fakeProber{duration: 600}, settings)

		_, err := a.Acquire(context.TODO(), "https://cdn.example.com/a.mp4", dest)
		Expect(err).To(BeNil())
	})

	It("reports unreadable media as a probe failure", func() {
		a := moderation.NewAcquirer(&fakeFetcher{payload: []byte("video")}, &fakeProber{err: errBoom}, settings)

		_, err := a.Acquire(context.TODO(), "https://cdn.example.com/a.mp4", dest)
		var target *moderation.ErrProbe
		Expect(errors.As(err, &target)).To(BeTrue())
	})

	It("fails the downloading stage when settings cannot be read", func() {
		settings.err = errBoom
		fetcher := &fakeFetcher{payload: []byte("video")}
		a := moderation.NewAcquirer(fetcher, &fakeProber{duration: 1}, settings)

		_, err := a.Acquire(context.TODO(), "https://cdn.example.com/a.mp4", dest)
		var target *moderation.ErrStage
		Expect(errors.As(err, &target)).To(BeTrue())
		Expect(target.Stage).To(Equal(moderation.StateDownloading))
		Expect(fetcher.Calls()).To(BeEmpty())
	})

	It("reads the settings on every acquisition", func() {
		a := moderation.NewAcquirer(&fakeFetcher{payload: []byte("video")}, &fakeProber{duration: 1}, settings)

		for range 3 {
			_, err := a.Acquire(context.TODO(), "https://cdn.example.com/a.mp4", dest)
			Expect(err).To(BeNil())
		}
		Expect(settings.calls).To(Equal(3))
	})
})
