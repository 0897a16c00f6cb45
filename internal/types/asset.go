package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Asset lifecycle statuses. Mutated only by the registration service and
// the watermark worker.
const (
	StatusRegistered        = "REGISTERED"
	StatusDuplicateDetected = "DUPLICATE_DETECTED"
	StatusWatermarking      = "WATERMARKING"
	StatusCompleted         = "COMPLETED"
	StatusFailed            = "FAILED"
)

// AssetRecord is the ledger row for one notarized asset. AssetID,
// Fingerprint and ObjectRef are immutable once inserted. Fingerprint
// exact-equality is globally unique; the unique index makes the
// conditional insert the single authority under concurrent registration.
type AssetRecord struct {
	AssetID      uuid.UUID      `gorm:"type:uuid;column:asset_id;primaryKey" json:"assetId"`
	Fingerprint  string         `gorm:"column:fingerprint;size:64;not null;uniqueIndex:idx_asset_record_fingerprint" json:"perceptualHash"`
	ObjectRef    string         `gorm:"column:object_ref;not null" json:"objectKey"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	ProcessedRef string         `gorm:"column:processed_ref" json:"processedKey,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	ErrorInfo    datatypes.JSON `gorm:"column:error_info;type:jsonb" json:"errorInfo,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null;autoCreateTime" json:"createdAt"`
	LastUpdated  time.Time      `gorm:"column:last_updated;not null;autoUpdateTime" json:"lastUpdated"`
}

func (AssetRecord) TableName() string { return "asset_record" }

// ErrorInfo is the error_info JSON payload, present only on FAILED records.
type ErrorInfo struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
	Attempt int       `json:"attempt,omitempty"`
}
