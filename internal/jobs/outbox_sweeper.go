package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/queue"
	"github.com/yungbote/hatchmark-backend/internal/repos"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

// OutboxSweeper re-sends watermark jobs whose outbox row was committed but
// whose send never succeeded (process crash or queue outage between commit
// and dispatch). Re-sending an already-delivered job is harmless: the
// worker is idempotent.
type OutboxSweeper struct {
	log    *logger.Logger
	outbox repos.OutboxRepo
	jobs   queue.Queue

	interval time.Duration
	minAge   time.Duration
	batch    int
}

// NewOutboxSweeper reads OUTBOX_SWEEP_INTERVAL (default 30s),
// OUTBOX_SWEEP_MIN_AGE (default 10s, keeps the sweep off entries whose
// first send is still in flight) and OUTBOX_SWEEP_BATCH (default 100).
func NewOutboxSweeper(baseLog *logger.Logger, outbox repos.OutboxRepo, jobs queue.Queue) *OutboxSweeper {
	interval := envutil.Duration("OUTBOX_SWEEP_INTERVAL", 30*time.Second)
	if interval < time.Second {
		interval = time.Second
	}
	minAge := envutil.Duration("OUTBOX_SWEEP_MIN_AGE", 10*time.Second)
	if minAge < 0 {
		minAge = 0
	}
	batch := envutil.Int("OUTBOX_SWEEP_BATCH", 100)
	if batch < 1 {
		batch = 1
	}
	return &OutboxSweeper{
		log:      baseLog.With("component", "OutboxSweeper"),
		outbox:   outbox,
		jobs:     jobs,
		interval: interval,
		minAge:   minAge,
		batch:    batch,
	}
}

// Sweep runs one pass and returns how many entries it re-dispatched. A
// send failure aborts the pass: the queue is down and the remaining
// entries would fail the same way.
func (s *OutboxSweeper) Sweep(ctx context.Context) (int, error) {
	entries, err := s.outbox.ListUndispatched(ctx, nil, s.minAge, s.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, entry := range entries {
		var job types.WatermarkJob
		if err := json.Unmarshal(entry.Payload, &job); err != nil {
			s.log.Error("outbox payload undecodable; skipping", "id", entry.ID, "assetId", entry.AssetID, "error", err)
			continue
		}
		if err := s.jobs.Send(ctx, job); err != nil {
			return sent, err
		}
		if err := s.outbox.MarkDispatched(ctx, nil, entry.ID); err != nil {
			s.log.Warn("mark dispatched failed after re-send", "id", entry.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Run sweeps on a fixed interval until ctx is canceled.
func (s *OutboxSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("outbox sweeper stopped")
			return
		case <-ticker.C:
			sent, err := s.Sweep(ctx)
			if err != nil {
				s.log.Warn("outbox sweep failed", "error", err)
				continue
			}
			if sent > 0 {
				s.log.Info("outbox sweep re-dispatched entries", "count", sent)
			}
		}
	}
}
