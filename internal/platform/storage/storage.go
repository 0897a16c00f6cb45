// Package storage holds original uploads and watermarked outputs. One
// bucket, keys namespaced by prefix: uploads/{uploadId}/{filename} for
// originals, watermarked/{assetId}.png for processed copies.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

type Mode string

const (
	ModeGCS    Mode = "gcs"
	ModeS3     Mode = "s3"
	ModeLocal  Mode = "local"
	ModeMemory Mode = "memory"
)

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Get returns errors.ErrNotFound for missing keys. The reader must
	// be closed by the caller.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	Exists(ctx context.Context, key string) (bool, error)
}

// New picks the backend from STORAGE_MODE. Local disk is the default so
// a bare checkout runs without a cloud account.
func New(log *logger.Logger) (BlobStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	mode := Mode(strings.ToLower(envutil.String("STORAGE_MODE", string(ModeLocal))))
	switch mode {
	case ModeGCS:
		return NewGCSStore(log)
	case ModeS3:
		return NewS3Store(log)
	case ModeLocal:
		return NewLocalStore(log)
	case ModeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("invalid STORAGE_MODE=%q (allowed: %q, %q, %q, %q)",
			string(mode), ModeGCS, ModeS3, ModeLocal, ModeMemory)
	}
}

// ReadAll drains and closes a Get reader. Fingerprinting and embedding
// need the whole image in memory anyway.
func ReadAll(ctx context.Context, store BlobStore, key string) ([]byte, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return b, nil
}

func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty object key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
