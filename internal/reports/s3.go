package reports

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"compliance/internal/config"
	"compliance/internal/logger"
	"compliance/pkg/retry"
)

// S3Store reads s3://bucket/key references from an S3 compatible endpoint.
type S3Store struct {
	mc      *minio.Client
	maxSize int64
	policy  retry.Policy
	secure  bool
	sslOnly bool
	logger  logger.Logger
}

func NewS3Store(cfg config.ReportsConfig, log logger.Logger) (*S3Store, error) {
	mc, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		Secure: cfg.S3.UseTLS,
		Region: cfg.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}

	policy := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = cfg.Retry.InitialInterval
	}

	return &S3Store{
		mc:      mc,
		maxSize: maxSize,
		policy:  policy,
		secure:  cfg.S3.UseTLS,
		sslOnly: cfg.SSLOnly,
		logger:  log,
	}, nil
}

func (s *S3Store) Fetch(ctx context.Context, rawURL string) (Bundle, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Cause: err}
	}
	if s.sslOnly && !s.secure {
		return nil, downloadError(rawURL, "ssl_only is set but the s3 endpoint does not use TLS")
	}

	var body []byte
	err = retry.Retry(ctx, s.policy, func() error {
		var getErr error
		body, getErr = s.get(ctx, bucket, key)
		return getErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &DownloadError{URL: rawURL, Cause: err}
	}

	return unpackFrom(rawURL, body, s.maxSize)
}

func (s *S3Store) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyS3Error(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, classifyS3Error(err)
	}
	if info.Size > s.maxSize {
		return nil, retry.NewFatalError(fmt.Errorf("report size %d exceeds limit of %d bytes", info.Size, s.maxSize))
	}

	body, err := io.ReadAll(io.LimitReader(obj, s.maxSize+1))
	if err != nil {
		return nil, classifyS3Error(err)
	}
	if int64(len(body)) > s.maxSize {
		return nil, retry.NewFatalError(fmt.Errorf("report exceeds limit of %d bytes", s.maxSize))
	}
	return body, nil
}

func classifyS3Error(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "AccessDenied", "InvalidBucketName", "InvalidObjectName":
		return retry.NewFatalError(err)
	}
	return err
}

func parseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return "", "", fmt.Errorf("not an s3 URL: %s", u.Scheme)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL must be s3://bucket/key")
	}
	return bucket, key, nil
}
