package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutboxEntry records a watermark job that must reach the queue. It is
// written in the same transaction as the AssetRecord insert; DispatchedAt
// stays null until a send succeeds, so a sweep can re-send stragglers.
type OutboxEntry struct {
	ID           uuid.UUID      `gorm:"type:uuid;column:id;primaryKey" json:"id"`
	AssetID      uuid.UUID      `gorm:"type:uuid;column:asset_id;not null;index" json:"assetId"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	DispatchedAt *time.Time     `gorm:"column:dispatched_at;index" json:"dispatchedAt,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null;autoCreateTime" json:"createdAt"`
}

func (OutboxEntry) TableName() string { return "watermark_outbox" }
