package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/platform/storage"
)

// StorageBootstrapError tags blob store startup failures with the mode
// that was selected, so deploy logs distinguish a typo'd STORAGE_MODE
// from an unreachable backend.
type StorageBootstrapError struct {
	Mode  string
	Cause error
}

func (e *StorageBootstrapError) Error() string {
	if e == nil {
		return "blob store bootstrap failed"
	}
	return fmt.Sprintf("blob store bootstrap failed (mode=%q): %v", e.Mode, e.Cause)
}

func (e *StorageBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func resolveBlobStore(log *logger.Logger) (storage.BlobStore, error) {
	mode := strings.ToLower(strings.TrimSpace(envutil.String("STORAGE_MODE", string(storage.ModeLocal))))
	log.Info("Selecting blob store", "mode", mode)

	store, err := storage.New(log)
	if err != nil {
		wrapped := &StorageBootstrapError{Mode: mode, Cause: err}
		log.Error("Blob store bootstrap failed", "mode", mode, "error", err)
		return nil, wrapped
	}
	return store, nil
}
