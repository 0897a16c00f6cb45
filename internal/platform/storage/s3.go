package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	pkgerrors "github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

type s3Store struct {
	log    *logger.Logger
	client *minio.Client
	bucket string
}

// NewS3Store targets any S3-compatible endpoint (AWS, MinIO) from
// S3_ENDPOINT / S3_ACCESS_KEY_ID / S3_SECRET_ACCESS_KEY.
func NewS3Store(log *logger.Logger) (BlobStore, error) {
	bucket := envutil.String("STORAGE_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("missing STORAGE_BUCKET")
	}
	endpoint := envutil.String("S3_ENDPOINT", "")
	if endpoint == "" {
		return nil, fmt.Errorf("missing S3_ENDPOINT")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			envutil.String("S3_ACCESS_KEY_ID", ""),
			envutil.String("S3_SECRET_ACCESS_KEY", ""),
			"",
		),
		Secure: envutil.Bool("S3_USE_SSL", true),
		Region: envutil.String("S3_REGION", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 connection: %w", err)
	}

	serviceLog := log.With("service", "S3Store", "bucket", bucket)
	serviceLog.Info("object storage initialized", "mode", ModeS3, "endpoint", endpoint)
	return &s3Store{log: serviceLog, client: client, bucket: bucket}, nil
}

func (s *s3Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return pkgerrors.Transient("s3 put", err)
	}
	return nil
}

func (s *s3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, pkgerrors.Transient("s3 get", err)
	}
	// GetObject is lazy; Stat forces the lookup so missing keys fail
	// here instead of on the first Read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %q: %w", key, pkgerrors.ErrNotFound)
		}
		return nil, pkgerrors.Transient("s3 stat", err)
	}
	return obj, nil
}

func (s *s3Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, pkgerrors.Transient("s3 stat", err)
	}
	return true, nil
}
