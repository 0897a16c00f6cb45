// Package jobs holds the background halves of the pipeline: the watermark
// worker pool that drains the job queue and the outbox sweeper that
// re-sends dispatches which never reached it.
package jobs

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/queue"
	"github.com/yungbote/hatchmark-backend/internal/repos"
	"github.com/yungbote/hatchmark-backend/internal/services"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

// idleWait is the pause between receives when the queue comes back empty.
const idleWait = time.Second

// Watermarker consumes watermark jobs with a bounded worker pool. Every
// step is idempotent (fixed output key, absolute status writes), so
// at-least-once delivery needs no dedup on this side: a redelivered job
// overwrites its own work and lands on the same terminal status.
type Watermarker struct {
	log       *logger.Logger
	jobs      queue.Queue
	ledger    repos.LedgerRepo
	watermark services.WatermarkService

	batchSize  int
	visibility time.Duration
	maxWorkers int
}

// NewWatermarker reads its knobs from the environment: QUEUE_BATCH_SIZE
// (default 10), QUEUE_VISIBILITY_TIMEOUT (default 900s, also the per-job
// deadline) and MAX_WORKERS (default 4).
func NewWatermarker(baseLog *logger.Logger, jobs queue.Queue, ledger repos.LedgerRepo, watermark services.WatermarkService) *Watermarker {
	batchSize := envutil.Int("QUEUE_BATCH_SIZE", 10)
	if batchSize < 1 {
		batchSize = 1
	}
	visibility := envutil.Duration("QUEUE_VISIBILITY_TIMEOUT", 900*time.Second)
	if visibility < time.Second {
		visibility = time.Second
	}
	maxWorkers := envutil.Int("MAX_WORKERS", 4)
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Watermarker{
		log:        baseLog.With("component", "Watermarker"),
		jobs:       jobs,
		ledger:     ledger,
		watermark:  watermark,
		batchSize:  batchSize,
		visibility: visibility,
		maxWorkers: maxWorkers,
	}
}

// Run blocks until ctx is canceled. Each batch is processed to completion
// before the next receive, so cancellation drains in-flight jobs; anything
// still unacked is redelivered to a later worker.
func (w *Watermarker) Run(ctx context.Context) error {
	w.log.Info("watermark worker started",
		"batchSize", w.batchSize,
		"visibility", w.visibility,
		"maxWorkers", w.maxWorkers,
	)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("watermark worker stopped")
			return nil
		default:
		}

		deliveries, err := w.jobs.Receive(ctx, w.batchSize, w.visibility)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("watermark worker stopped")
				return nil
			}
			w.log.Warn("receive failed", "error", err)
			w.pause(ctx)
			continue
		}
		if len(deliveries) == 0 {
			w.pause(ctx)
			continue
		}

		var g errgroup.Group
		g.SetLimit(w.maxWorkers)
		for _, d := range deliveries {
			d := d
			g.Go(func() error {
				w.process(ctx, d)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (w *Watermarker) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(idleWait):
	}
}

// process runs one job end to end. It acks only after COMPLETED is
// recorded; every failure path leaves the delivery unacked so the
// visibility timeout redelivers it.
func (w *Watermarker) process(ctx context.Context, d queue.Delivery) {
	jobCtx, cancel := context.WithTimeout(ctx, w.visibility)
	defer cancel()

	job := d.Job
	log := w.log.With("assetId", job.AssetID, "receiveCount", d.ReceiveCount)

	defer func() {
		if r := recover(); r != nil {
			log.Error("watermark job panic", "panic", r)
			w.markFailed(job, d.ReceiveCount, fmt.Errorf("panic while watermarking: %v", r))
		}
	}()

	err := w.ledger.UpdateStatus(jobCtx, nil, job.AssetID, types.StatusWatermarking, nil)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			// A job without a ledger row is poisoned. Leave it unacked and
			// let the receive budget walk it to the dead-letter list.
			log.Warn("job references missing ledger row", "objectKey", job.ObjectKey)
			return
		}
		log.Warn("status update to WATERMARKING failed", "error", err)
		return
	}

	processedRef, err := w.watermark.Apply(jobCtx, job)
	if err != nil {
		log.Warn("watermark apply failed", "error", err)
		w.markFailed(job, d.ReceiveCount, err)
		return
	}

	fields := map[string]interface{}{
		"processed_ref": processedRef,
		// Clear stale failure detail from an earlier attempt.
		"error_info": nil,
	}
	if err := w.ledger.UpdateStatus(jobCtx, nil, job.AssetID, types.StatusCompleted, fields); err != nil {
		// The object is stored; redelivery re-runs onto the same key and
		// retries this write.
		log.Warn("status update to COMPLETED failed", "error", err)
		return
	}

	if err := w.jobs.Delete(jobCtx, d.Receipt); err != nil {
		log.Warn("ack failed; job will be redelivered", "error", err)
		return
	}
	log.Info("watermark job completed", "processedRef", processedRef)
}

// markFailed records FAILED with error detail before the job goes back for
// redelivery. It runs on its own deadline: the job context is usually the
// thing that just expired.
func (w *Watermarker) markFailed(job types.WatermarkJob, attempt int, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info := types.ErrorInfo{
		Message: cause.Error(),
		At:      time.Now().UTC(),
		Attempt: attempt,
	}
	body, err := json.Marshal(info)
	if err != nil {
		w.log.Error("marshal error info", "assetId", job.AssetID, "error", err)
		return
	}
	fields := map[string]interface{}{"error_info": datatypes.JSON(body)}
	if err := w.ledger.UpdateStatus(ctx, nil, job.AssetID, types.StatusFailed, fields); err != nil {
		w.log.Warn("status update to FAILED failed", "assetId", job.AssetID, "error", err)
	}
}
