package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	pkgerrors "github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

type localStore struct {
	log  *logger.Logger
	root string
}

// NewLocalStore keeps objects under STORAGE_LOCAL_DIR (default
// data/objects). Content types are not persisted; local mode serves
// development and tests only.
func NewLocalStore(log *logger.Logger) (BlobStore, error) {
	root := envutil.String("STORAGE_LOCAL_DIR", "data/objects")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir storage root: %w", err)
	}
	serviceLog := log.With("service", "LocalStore", "root", root)
	serviceLog.Info("object storage initialized", "mode", ModeLocal)
	return &localStore{log: serviceLog, root: root}, nil
}

func (s *localStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *localStore) Put(_ context.Context, key string, r io.Reader, _ string) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir object dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

func (s *localStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %q: %w", key, pkgerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

func (s *localStore) Exists(_ context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	if _, err := os.Stat(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}
