// Package storage archives raw import uploads to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	infraconfig "github.com/staffhub/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// S3ArchiveStore writes uploaded files to a bucket under a fixed key prefix.
// It works with AWS S3 and S3-compatible stores such as MinIO.
type S3ArchiveStore struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3ArchiveStoreOption is a functional option for configuring S3ArchiveStore
type S3ArchiveStoreOption func(*S3ArchiveStore)

// WithLogger sets a custom logger for S3ArchiveStore
func WithLogger(logger *zap.Logger) S3ArchiveStoreOption {
	return func(s *S3ArchiveStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewS3ArchiveStore creates an S3ArchiveStore from configuration.
// Without an endpoint the AWS default resolver is used; static keys are
// optional there, and required for a custom endpoint.
func NewS3ArchiveStore(ctx context.Context, cfg *infraconfig.ArchiveConfig, opts ...S3ArchiveStoreOption) (*S3ArchiveStore, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("archive access key and secret key must be set together")
	}
	if cfg.Endpoint != "" && cfg.AccessKey == "" {
		return nil, errors.New("archive access key is required for a custom endpoint")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	var endpoint string
	if cfg.Endpoint != "" {
		endpoint, err = normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
		if err != nil {
			return nil, err
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		// plain PUT bodies keep S3-compatible stores without chunked checksums working
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	store := &S3ArchiveStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.KeyPrefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid archive endpoint %q", endpoint)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3ArchiveStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Archive stores body under key, below the configured prefix
func (s *S3ArchiveStore) Archive(ctx context.Context, key, contentType string, body []byte) error {
	if key == "" {
		return errors.New("archive key is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey := s.ObjectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", objectKey, err)
	}

	s.logger.Debug("Archived upload",
		zap.String("bucket", s.bucket),
		zap.String("key", objectKey),
		zap.Int("bytes", len(body)),
	)
	return nil
}

// ObjectKey returns the full object key used for key
func (s *S3ArchiveStore) ObjectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Bucket returns the bucket name
func (s *S3ArchiveStore) Bucket() string {
	return s.bucket
}
