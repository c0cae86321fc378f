// Package storage publishes finished timelapses to an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/dentaltracker/dentaltracker/internal/config"
)

// ErrDisabled is returned when no storage endpoint is configured.
var ErrDisabled = errors.New("object storage is not configured")

const videoContentType = "video/mp4"

// Object describes an uploaded video.
type Object struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageSettings
	log    zerolog.Logger
}

// Enabled reports whether cfg names an endpoint to publish to.
func Enabled(cfg config.StorageSettings) bool {
	return strings.TrimSpace(cfg.Endpoint) != ""
}

// NewObjectStore builds a client for cfg. No request is made until the first
// upload.
func NewObjectStore(cfg config.StorageSettings, logger zerolog.Logger) (*ObjectStore, error) {
	if !Enabled(cfg) {
		return nil, ErrDisabled
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	endpoint, useSSL, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
		log:    logger.With().Str("component", "storage").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// normalizeEndpoint accepts either host:port or a URL; a URL scheme overrides
// the configured SSL flag.
func normalizeEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.HasPrefix(endpoint, "http") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("parse endpoint: missing host in %q", endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
	}
	s.log.Info().Msg("bucket created")
	return nil
}

// Publish uploads the video at path under its base name.
func (s *ObjectStore) Publish(ctx context.Context, path string) (Object, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Object{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Object{}, fmt.Errorf("%s is a directory", path)
	}

	if err := s.EnsureBucket(ctx); err != nil {
		return Object{}, err
	}

	key := ObjectKey(path)
	uploaded, err := s.client.FPutObject(ctx, s.cfg.Bucket, key, path, minio.PutObjectOptions{
		ContentType: videoContentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", key, err)
	}

	s.log.Info().Str("key", key).Int64("size", uploaded.Size).Msg("timelapse published")
	return Object{
		Bucket: uploaded.Bucket,
		Key:    uploaded.Key,
		Size:   uploaded.Size,
		ETag:   uploaded.ETag,
	}, nil
}

// ObjectKey is the bucket key a local video is stored under.
func ObjectKey(path string) string {
	return "timelapses/" + filepath.Base(path)
}
