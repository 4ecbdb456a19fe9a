package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

type HttpOpts func(h *HttpDownloader)

// WithRetries sets how many times a request is retried when it fails before any byte is received.
func WithRetries(n uint64) HttpOpts {
	return func(h *HttpDownloader) {
		h.retries = n
	}
}

func WithBackoffBase(d time.Duration) HttpOpts {
	return func(h *HttpDownloader) {
		h.backoffBase = d
	}
}

func WithHttpClient(c *http.Client) HttpOpts {
	return func(h *HttpDownloader) {
		h.client = c
	}
}

type HttpDownloader struct {
	client      *http.Client
	retries     uint64
	backoffBase time.Duration
}

func NewHttpDownloader(opts ...HttpOpts) *HttpDownloader {
	h := &HttpDownloader{
		client:      http.DefaultClient,
		retries:     3,
		backoffBase: time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *HttpDownloader) Get(ctx context.Context, req Request, dst io.Writer) error {
	location := req.URL.Redacted()

	var resp *http.Response
	backoff := retry.WithMaxRetries(h.retries, retry.NewFibonacci(h.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := h.do(ctx, req)
		if err != nil {
			zap.S().Named("http_downloader").Warnw("request failed", "location", location, "error", err)
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkMediaType(req, resp.Header.Get("Content-Type")); err != nil {
		return err
	}

	totalSize := int64(0)
	n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err == nil {
		totalSize = n
	}
	if req.MaxBytes > 0 && totalSize > req.MaxBytes {
		return NewErrTooLarge(req.MaxBytes)
	}

	newCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	mw := newWrapper(newCtx, dst, totalSize, req.MaxBytes)

	if _, err := io.Copy(mw, resp.Body); err != nil {
		return err
	}

	if mw.total > 0 && (mw.total != mw.Downloaded()) {
		return fmt.Errorf("failed to download the entire media. expected bytes %d received %d", mw.total, mw.Downloaded())
	}

	return nil
}

// do sends the request. Transport errors and 5xx/429 answers are retryable, other statuses are not.
func (h *HttpDownloader) do(ctx context.Context, req Request) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, retry.RetryableError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	_ = resp.Body.Close()
	statusErr := NewErrStatus(req.URL.Redacted(), resp.StatusCode)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, retry.RetryableError(statusErr)
	}
	return nil, statusErr
}

func (h *HttpDownloader) Schemes() []string {
	return []string{"http", "https"}
}

func (h *HttpDownloader) Type() string {
	return "http"
}
