package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

type OutboxRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.OutboxEntry) error
	MarkDispatched(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	// ListUndispatched returns entries older than olderThan whose send never
	// succeeded, oldest first. No locking: a duplicate re-send is harmless
	// because delivery is at-least-once end to end.
	ListUndispatched(ctx context.Context, tx *gorm.DB, olderThan time.Duration, limit int) ([]*types.OutboxEntry, error)
}

type outboxRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutboxRepo(db *gorm.DB, baseLog *logger.Logger) OutboxRepo {
	return &outboxRepo{
		db:  db,
		log: baseLog.With("repo", "OutboxRepo"),
	}
}

func (r *outboxRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.OutboxEntry) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if entry == nil || entry.AssetID == uuid.Nil {
		return fmt.Errorf("create outbox entry: missing assetId: %w", errors.ErrInvalidArgument)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(entry).Error
}

func (r *outboxRepo) MarkDispatched(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.OutboxEntry{}).
		Where("id = ? AND dispatched_at IS NULL", id).
		Update("dispatched_at", time.Now().UTC()).Error
}

func (r *outboxRepo) ListUndispatched(ctx context.Context, tx *gorm.DB, olderThan time.Duration, limit int) ([]*types.OutboxEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*types.OutboxEntry
	err := transaction.WithContext(ctx).
		Where("dispatched_at IS NULL AND created_at <= ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
