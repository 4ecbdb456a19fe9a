package download

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	accessKey       string
	secretAccessKey string
	useSSL          bool
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		useSSL: false,
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// MinioDownloader fetches s3://bucket/key locators from an S3 compatible store.
type MinioDownloader struct {
	cfg    *minioConfig
	client *minio.Client
}

func NewMinioDownloader(opts ...MinioOpts) (*MinioDownloader, error) {
	cfg := newConfig(opts...)

	minioClient, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinioDownloader{cfg: cfg, client: minioClient}, nil
}

func (s *MinioDownloader) Get(ctx context.Context, req Request, dst io.Writer) error {
	bucket := req.URL.Host
	key := strings.TrimPrefix(req.URL.Path, "/")
	if bucket == "" || key == "" {
		return fmt.Errorf("invalid object locator %q: expected s3://bucket/key", req.URL.String())
	}

	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer object.Close()

	objInfo, err := object.Stat()
	if err != nil {
		return err
	}

	if err := checkMediaType(req, objInfo.ContentType); err != nil {
		return err
	}
	if req.MaxBytes > 0 && objInfo.Size > req.MaxBytes {
		return NewErrTooLarge(req.MaxBytes)
	}

	newCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	mw := newWrapper(newCtx, dst, objInfo.Size, req.MaxBytes)

	if _, err = io.Copy(mw, object); err != nil {
		return err
	}

	if mw.Downloaded() != mw.total {
		return fmt.Errorf("failed to download the entire object. expected bytes %d received %d", mw.total, mw.Downloaded())
	}

	return nil
}

func (s *MinioDownloader) Schemes() []string {
	return []string{"s3"}
}

func (s *MinioDownloader) Type() string {
	return "minio"
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) {
		c.secretAccessKey = secretKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}
