package download_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"

	"github.com/safestream/moderator/pkg/download"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("download manager", func() {
	It("routes by scheme", func() {
		web := &testDownloader{schemes: []string{"http", "https"}, payload: []byte("web")}
		store := &testDownloader{schemes: []string{"s3"}, payload: []byte("s3")}
		md := download.NewDownloaderManager().Register(web).Register(store)

		buf := &bytes.Buffer{}
		Expect(md.Download(context.TODO(), "s3://bucket/video.mp4", buf)).To(Succeed())
		Expect(buf.String()).To(Equal("s3"))
		Expect(web.called).To(BeFalse())
		Expect(store.lastURL.Host).To(Equal("bucket"))

		buf.Reset()
		Expect(md.Download(context.TODO(), "HTTPS://cdn.example.com/v.mp4", buf)).To(Succeed())
		Expect(buf.String()).To(Equal("web"))
	})

	It("rejects unknown schemes", func() {
		md := download.NewDownloaderManager().Register(&testDownloader{schemes: []string{"http"}})

		err := md.Download(context.TODO(), "ftp://host/file", io.Discard)
		var target *download.ErrUnsupportedScheme
		Expect(errors.As(err, &target)).To(BeTrue())
	})

	It("rejects malformed locators", func() {
		md := download.NewDownloaderManager()
		Expect(md.Download(context.TODO(), "://nope", io.Discard)).ToNot(Succeed())
	})

	It("passes the request options to the downloader", func() {
		d := &testDownloader{schemes: []string{"http"}}
		md := download.NewDownloaderManager().Register(d)

		Expect(md.Download(context.TODO(), "http://host/v.mp4", io.Discard,
			download.WithMaxBytes(42),
			download.WithAcceptedTypes(func(string) bool { return true }),
		)).To(Succeed())
		Expect(d.lastReq.MaxBytes).To(Equal(int64(42)))
		Expect(d.lastReq.Accept).ToNot(BeNil())
	})

	It("surfaces the downloader error", func() {
		md := download.NewDownloaderManager().Register(&testDownloader{schemes: []string{"http"}, err: errors.New("boom")})
		Expect(md.Download(context.TODO(), "http://host/v.mp4", io.Discard)).To(MatchError("boom"))
	})
})

type testDownloader struct {
	schemes []string
	payload []byte
	err     error
	called  bool
	lastURL *url.URL
	lastReq download.Request
}

func (t *testDownloader) Get(_ context.Context, req download.Request, dst io.Writer) error {
	t.called = true
	t.lastURL = req.URL
	t.lastReq = req
	if t.err != nil {
		return t.err
	}
	_, err := dst.Write(t.payload)
	return err
}

func (t *testDownloader) Schemes() []string {
	return t.schemes
}

func (t *testDownloader) Type() string {
	return "test"
}
