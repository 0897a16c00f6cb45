package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	pkgerrors "github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

type gcsStore struct {
	log    *logger.Logger
	client *gcstorage.Client
	bucket string
}

// NewGCSStore reads STORAGE_BUCKET and, when STORAGE_EMULATOR_HOST is
// set, talks to the emulator without credentials.
func NewGCSStore(log *logger.Logger) (BlobStore, error) {
	bucket := envutil.String("STORAGE_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("missing STORAGE_BUCKET")
	}

	ctx := context.Background()
	var client *gcstorage.Client
	var err error
	if host := strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", ""), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		client, err = gcstorage.NewClient(ctx, option.WithoutAuthentication())
	} else {
		client, err = gcstorage.NewClient(ctx, option.WithScopes(gcstorage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	serviceLog := log.With("service", "GCSStore", "bucket", bucket)
	serviceLog.Info("object storage initialized", "mode", ModeGCS)
	return &gcsStore{log: serviceLog, client: client, bucket: bucket}, nil
}

func (s *gcsStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return pkgerrors.Transient("gcs put", err)
	}
	if err := w.Close(); err != nil {
		return pkgerrors.Transient("gcs put", err)
	}
	return nil
}

// Do NOT cancel the read context before the caller finishes with the
// reader; the cancel rides along on Close instead.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (s *gcsStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("object %q: %w", key, pkgerrors.ErrNotFound)
		}
		return nil, pkgerrors.Transient("gcs get", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (s *gcsStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return false, nil
		}
		return false, pkgerrors.Transient("gcs attrs", err)
	}
	return true, nil
}
