package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/port/outbound"
	"github.com/vidgen/studio/internal/shared/config"
)

const (
	videoContentType = "video/mp4"
	defaultURLExpiry = 24 * time.Hour
)

// VideoOpener opens persisted videos by location.
type VideoOpener interface {
	Open(location string) (io.ReadSeekCloser, error)
}

// ShareStore implements VideoSharePort by uploading videos to an
// S3-compatible bucket and handing out presigned download URLs.
type ShareStore struct {
	client    *s3.Client
	presigner *s3.PresignClient
	files     VideoOpener
	bucket    string
	prefix    string
	expiry    time.Duration
	logger    *zap.Logger
}

// NewShareStore creates a share store. When storage is not configured the
// store is returned disabled and every Share call fails with
// outbound.ErrShareUnavailable.
func NewShareStore(ctx context.Context, cfg config.StorageConfig, files VideoOpener, logger *zap.Logger) (*ShareStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &ShareStore{
		files:  files,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		expiry: cfg.URLExpiry,
		logger: logger,
	}
	if store.expiry <= 0 {
		store.expiry = defaultURLExpiry
	}
	if !cfg.Enabled() {
		return store, nil
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	store.client = client
	store.presigner = s3.NewPresignClient(client)
	return store, nil
}

// Enabled reports whether uploads are configured.
func (s *ShareStore) Enabled() bool {
	return s.client != nil
}

// Share uploads the video behind result and returns a presigned GET URL.
func (s *ShareStore) Share(ctx context.Context, result *model.GenerationResult) (*outbound.ShareLink, error) {
	if !s.Enabled() {
		return nil, outbound.ErrShareUnavailable
	}

	f, err := s.files.Open(result.Location)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	key := s.objectKey(result)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(result.Size),
		ContentType:   aws.String(videoContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.expiry
	})
	if err != nil {
		return nil, fmt.Errorf("presign get: %w", err)
	}

	expiresAt := time.Now().Add(s.expiry)
	s.logger.Info("Video shared",
		zap.String("result_id", result.ID.String()),
		zap.String("key", key),
		zap.Time("expires_at", expiresAt),
	)
	return &outbound.ShareLink{URL: req.URL, ExpiresAt: &expiresAt}, nil
}

func (s *ShareStore) objectKey(result *model.GenerationResult) string {
	return path.Join(s.prefix, filepath.Base(result.Location))
}

// Compile-time interface check
var _ outbound.VideoSharePort = (*ShareStore)(nil)
