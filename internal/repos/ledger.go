package repos

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

// FingerprintEntry is the projection the approximate-match scan walks.
type FingerprintEntry struct {
	AssetID     uuid.UUID `gorm:"column:asset_id"`
	Fingerprint string    `gorm:"column:fingerprint"`
}

type LedgerRepo interface {
	// InsertIfAbsent writes record atomically. When the insert loses to an
	// existing row (same assetId or same exact fingerprint) it returns the
	// winning record together with errors.ErrLedgerConflict. The stored
	// winner is never overwritten.
	InsertIfAbsent(ctx context.Context, tx *gorm.DB, record *types.AssetRecord) (*types.AssetRecord, error)
	GetByAssetID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssetRecord, error)
	FindByFingerprint(ctx context.Context, tx *gorm.DB, fingerprint string) ([]*types.AssetRecord, error)
	// UpdateStatus applies a partial update: status, last_updated, and the
	// explicitly named fields. Unspecified fields are never clobbered.
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, fields map[string]interface{}) error
	// ScanFingerprints streams (assetId, fingerprint) pages in assetId
	// order until exhaustion or until fn returns an error.
	ScanFingerprints(ctx context.Context, tx *gorm.DB, pageSize int, fn func([]FingerprintEntry) error) error
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.AssetRecord, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
}

type ledgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerRepo(db *gorm.DB, baseLog *logger.Logger) LedgerRepo {
	return &ledgerRepo{
		db:  db,
		log: baseLog.With("repo", "LedgerRepo"),
	}
}

func (r *ledgerRepo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, record *types.AssetRecord) (*types.AssetRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if record == nil || record.AssetID == uuid.Nil {
		return nil, fmt.Errorf("insert asset record: missing assetId: %w", errors.ErrInvalidArgument)
	}
	if record.Fingerprint == "" {
		return nil, fmt.Errorf("insert asset record: missing fingerprint: %w", errors.ErrInvalidArgument)
	}

	err := transaction.WithContext(ctx).Create(record).Error
	if err == nil {
		return nil, nil
	}
	if !isDuplicateKey(err) {
		return nil, fmt.Errorf("insert asset record: %w", err)
	}

	// Lost the conditional insert. Resolve the winner deterministically:
	// earliest record for the fingerprint, falling back to the assetId row.
	var winner types.AssetRecord
	werr := transaction.WithContext(ctx).
		Where("fingerprint = ?", record.Fingerprint).
		Order("created_at ASC").
		First(&winner).Error
	if stderrors.Is(werr, gorm.ErrRecordNotFound) {
		werr = transaction.WithContext(ctx).
			Where("asset_id = ?", record.AssetID).
			First(&winner).Error
	}
	if werr != nil {
		return nil, fmt.Errorf("resolve insert conflict: %w", werr)
	}
	return &winner, fmt.Errorf("asset %s: %w", winner.AssetID, errors.ErrLedgerConflict)
}

func (r *ledgerRepo) GetByAssetID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssetRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var record types.AssetRecord
	err := transaction.WithContext(ctx).
		Where("asset_id = ?", id).
		First(&record).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("asset %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *ledgerRepo) FindByFingerprint(ctx context.Context, tx *gorm.DB, fingerprint string) ([]*types.AssetRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AssetRecord
	if fingerprint == "" {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ledgerRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"status":       status,
		"last_updated": time.Now().UTC(),
	}
	for k, v := range fields {
		switch k {
		case "asset_id", "fingerprint", "object_ref", "created_at":
			// immutable once inserted
			continue
		}
		updates[k] = v
	}
	res := transaction.WithContext(ctx).
		Model(&types.AssetRecord{}).
		Where("asset_id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("asset %s: %w", id, errors.ErrNotFound)
	}
	return nil
}

func (r *ledgerRepo) ScanFingerprints(ctx context.Context, tx *gorm.DB, pageSize int, fn func([]FingerprintEntry) error) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if pageSize <= 0 {
		pageSize = 500
	}
	cursor := uuid.Nil
	for {
		var batch []FingerprintEntry
		err := transaction.WithContext(ctx).
			Model(&types.AssetRecord{}).
			Select("asset_id, fingerprint").
			Where("asset_id > ?", cursor).
			Order("asset_id ASC").
			Limit(pageSize).
			Find(&batch).Error
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < pageSize {
			return nil
		}
		cursor = batch[len(batch)-1].AssetID
	}
}

func (r *ledgerRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.AssetRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.AssetRecord
	err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ledgerRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).Model(&types.AssetRecord{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// isDuplicateKey recognizes unique violations across drivers: the gorm
// translated sentinel, the raw postgres code, and the sqlite message.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && strings.TrimSpace(pgErr.Code) == "23505" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint failed")
}
