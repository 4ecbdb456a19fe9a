package download_test

import (
	"context"
	"io"
	"net/url"

	"github.com/safestream/moderator/pkg/download"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("minio downloader", func() {
	It("serves the s3 scheme", func() {
		d, err := download.NewMinioDownloader(download.WithEndpoint("127.0.0.1:9000"), download.WithAccessKey("key"), download.WithSecretKey("secret"))
		Expect(err).To(BeNil())
		Expect(d.Schemes()).To(ConsistOf("s3"))
		Expect(d.Type()).To(Equal("minio"))
	})

	It("rejects locators without a key", func() {
		d, err := download.NewMinioDownloader(download.WithEndpoint("127.0.0.1:9000"))
		Expect(err).To(BeNil())

		u, err := url.Parse("s3://bucket")
		Expect(err).To(BeNil())
		err = d.Get(context.TODO(), download.Request{URL: u}, io.Discard)
		Expect(err).To(MatchError(ContainSubstring("expected s3://bucket/key")))
	})
})
