package app

import (
	"errors"
	"testing"

	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestResolveBlobStoreMemoryMode(t *testing.T) {
	t.Setenv("STORAGE_MODE", "memory")
	log := newTestLogger(t)

	store, err := resolveBlobStore(log)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store == nil {
		t.Fatalf("nil store")
	}
}

func TestResolveBlobStoreInvalidMode(t *testing.T) {
	t.Setenv("STORAGE_MODE", "floppy")
	log := newTestLogger(t)

	_, err := resolveBlobStore(log)
	if err == nil {
		t.Fatalf("expected error for invalid mode")
	}
	var bootErr *StorageBootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("expected StorageBootstrapError, got %T", err)
	}
	if bootErr.Mode != "floppy" {
		t.Fatalf("mode = %q", bootErr.Mode)
	}
}
