package download

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Request describes one object to fetch.
type Request struct {
	URL *url.URL
	// MaxBytes caps the streamed size. Zero disables the cap.
	MaxBytes int64
	// Accept is consulted with the media type announced by the source, when it announces a specific one.
	Accept func(mediaType string) bool
}

type Downloader interface {
	Get(ctx context.Context, req Request, dst io.Writer) error
	Schemes() []string
	Type() string
}

type Option func(r *Request)

func WithMaxBytes(n int64) Option {
	return func(r *Request) {
		r.MaxBytes = n
	}
}

func WithAcceptedTypes(accept func(mediaType string) bool) Option {
	return func(r *Request) {
		r.Accept = accept
	}
}

type Manager struct {
	downloaders map[string]Downloader
}

func NewDownloaderManager() *Manager {
	return &Manager{
		downloaders: map[string]Downloader{},
	}
}

// Register routes the downloader's schemes to it. A later registration for the same scheme wins.
func (m *Manager) Register(downloader Downloader) *Manager {
	for _, scheme := range downloader.Schemes() {
		m.downloaders[scheme] = downloader
	}
	return m
}

func (m *Manager) Download(ctx context.Context, locator string, dst io.Writer, opts ...Option) error {
	u, err := url.Parse(locator)
	if err != nil {
		return fmt.Errorf("invalid media locator %q: %w", locator, err)
	}

	downloader, ok := m.downloaders[strings.ToLower(u.Scheme)]
	if !ok {
		return NewErrUnsupportedScheme(u.Scheme)
	}

	req := Request{URL: u}
	for _, o := range opts {
		o(&req)
	}

	zap.S().Named("downloader").Infow("downloading media", "downloader_type", downloader.Type(), "host", u.Host)

	if err := downloader.Get(ctx, req, dst); err != nil {
		zap.S().Named("downloader").Errorw("failed to download media", "error", err, "downloader_type", downloader.Type())
		return err
	}

	return nil
}

// checkMediaType validates a Content-Type announced by the source.
// Missing or generic binary types are accepted since many stores do not label video objects.
func checkMediaType(req Request, contentType string) error {
	if req.Accept == nil || contentType == "" {
		return nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return NewErrUnsupportedMediaType(contentType)
	}

	switch mediaType {
	case "application/octet-stream", "binary/octet-stream":
		return nil
	}

	if !req.Accept(mediaType) {
		return NewErrUnsupportedMediaType(mediaType)
	}
	return nil
}

// wrapper is a wrapper around the io.Writer to get metrics about download progress.
// It fails the write once more than limit bytes went through.
type wrapper struct {
	downloadedBytes atomic.Int64
	total           int64
	limit           int64
	w               io.Writer
}

func newWrapper(ctx context.Context, w io.Writer, totalBytesToDownload int64, limit int64) *wrapper {
	mw := &wrapper{w: w, total: totalBytesToDownload, limit: limit}
	go mw.start(ctx)

	return mw
}

func (m *wrapper) start(ctx context.Context) {
	oldValue := int64(0)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			downloaded := m.downloadedBytes.Load()
			if m.total <= 0 {
				progress := fmt.Sprintf("%.2f Mb", float32(downloaded)/(1024*1024))
				zap.S().Named("downloader").Debugw("media downloading", "progress", progress)
				continue
			}

			progress := fmt.Sprintf("%.2f%%", 100*(float32(downloaded)/float32(m.total)))
			rate := fmt.Sprintf("%.2f MB/s", (float32(downloaded)-float32(oldValue))/(1024*1024*10))
			zap.S().Named("downloader").Debugw("media downloading", "progress", progress, "rate", rate)
			oldValue = downloaded
		}
	}
}

func (m *wrapper) Write(p []byte) (n int, err error) {
	if m.limit > 0 && m.downloadedBytes.Load()+int64(len(p)) > m.limit {
		return 0, NewErrTooLarge(m.limit)
	}

	n, err = m.w.Write(p)
	m.downloadedBytes.Add(int64(n))
	return
}

func (m *wrapper) Downloaded() int64 {
	return m.downloadedBytes.Load()
}
