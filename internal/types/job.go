package types

import (
	"time"

	"github.com/google/uuid"
)

// WatermarkJob is the queue message produced once per successful
// registration. It lives only as long as the queue keeps it; the ledger
// row is the durable state.
type WatermarkJob struct {
	AssetID     uuid.UUID `json:"assetId"`
	ObjectKey   string    `json:"objectKey"`
	Fingerprint string    `json:"perceptualHash"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}
