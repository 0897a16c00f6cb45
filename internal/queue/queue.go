// Package queue carries watermark jobs between registration and the
// worker pool. Delivery is at-least-once: a received job stays invisible
// for the visibility window and is redelivered if not deleted in time.
package queue

import (
	"context"
	"time"

	"github.com/yungbote/hatchmark-backend/internal/types"
)

// Delivery is one received job plus the receipt that acknowledges it.
type Delivery struct {
	Job          types.WatermarkJob
	Receipt      string
	ReceiveCount int
}

type Queue interface {
	Send(ctx context.Context, job types.WatermarkJob) error

	// Receive returns up to maxCount jobs and hides them for the
	// visibility window. Jobs left unacknowledged past the window are
	// redelivered with a bumped receive count, or dead-lettered once
	// the count reaches the queue's budget.
	Receive(ctx context.Context, maxCount int, visibility time.Duration) ([]Delivery, error)

	// Delete acknowledges a delivery. Unknown receipts are a no-op so
	// acks after a redelivery race stay safe.
	Delete(ctx context.Context, receipt string) error
}
