package download_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/safestream/moderator/pkg/download"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("http downloader", func() {
	var (
		payload []byte
		calls   atomic.Int32
	)

	BeforeEach(func() {
		payload = make([]byte, 4096)
		_, err := rand.Read(payload)
		Expect(err).To(BeNil())
		calls.Store(0)
	})

	get := func(ts *httptest.Server, opts ...func(*download.Request)) (*bytes.Buffer, error) {
		u, err := url.Parse(ts.URL + "/video.mp4")
		Expect(err).To(BeNil())
		req := download.Request{URL: u}
		for _, o := range opts {
			o(&req)
		}
		buf := &bytes.Buffer{}
		d := download.NewHttpDownloader(download.WithRetries(2), download.WithBackoffBase(time.Millisecond))
		return buf, d.Get(context.TODO(), req, buf)
	}

	It("streams the body", func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "video/mp4")
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			_, _ = w.Write(payload)
		}))
		defer ts.Close()

		buf, err := get(ts)
		Expect(err).To(BeNil())
		Expect(buf.Bytes()).To(Equal(payload))
	})

	It("retries server errors", func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write(payload)
		}))
		defer ts.Close()

		buf, err := get(ts)
		Expect(err).To(BeNil())
		Expect(buf.Len()).To(Equal(len(payload)))
		Expect(calls.Load()).To(Equal(int32(3)))
	})

	It("does not retry client errors", func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		_, err := get(ts)
		var statusErr *download.ErrStatus
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.StatusCode).To(Equal(http.StatusNotFound))
		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("gives up after the retries", func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		_, err := get(ts)
		Expect(err).ToNot(BeNil())
		Expect(calls.Load()).To(Equal(int32(3)))
	})

	It("enforces the size cap from the announced length", func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			_, _ = w.Write(payload)
		}))
		defer ts.Close()

		buf, err := get(ts, func(r *download.Request) { r.MaxBytes = 1024 })
		Expect(download.IsTooLarge(err)).To(BeTrue())
		Expect(buf.Len()).To(Equal(0))
	})

	It("enforces the size cap while streaming", func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			for i := 0; i < 4; i++ {
				_, _ = w.Write(payload)
				flusher.Flush()
			}
		}))
		defer ts.Close()

		_, err := get(ts, func(r *download.Request) { r.MaxBytes = int64(len(payload)) })
		Expect(download.IsTooLarge(err)).To(BeTrue())
	})

	It("rejects unsupported media types", func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html></html>"))
		}))
		defer ts.Close()

		_, err := get(ts, func(r *download.Request) {
			r.Accept = func(mediaType string) bool { return mediaType == "video/mp4" }
		})
		var target *download.ErrUnsupportedMediaType
		Expect(errors.As(err, &target)).To(BeTrue())
	})

	It("accepts generic binary media types", func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(payload)
		}))
		defer ts.Close()

		buf, err := get(ts, func(r *download.Request) {
			r.Accept = func(mediaType string) bool { return false }
		})
		Expect(err).To(BeNil())
		Expect(buf.Len()).To(Equal(len(payload)))
	})
})
