// The reconcile binary runs one outbox sweep and reports queue depths.
// Operators run it after a queue outage to re-send dispatches that never
// left the outbox, or with -dry-run to inspect the backlog first.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/hatchmark-backend/internal/clients/redis"
	"github.com/yungbote/hatchmark-backend/internal/db"
	"github.com/yungbote/hatchmark-backend/internal/jobs"
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/queue"
	"github.com/yungbote/hatchmark-backend/internal/repos"
)

// depthReporter is the optional introspection side of a queue backend.
type depthReporter interface {
	Depth(ctx context.Context) (ready int64, inflight int64, err error)
	DeadDepth(ctx context.Context) (int64, error)
}

func main() {
	var dryRun bool
	var timeout time.Duration
	flag.BoolVar(&dryRun, "dry-run", false, "list pending outbox entries without re-sending")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline for the sweep")
	flag.Parse()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	outbox := repos.NewOutboxRepo(pg.DB(), log)

	rdb, err := redis.NewClient(log)
	if err != nil {
		log.Error("redis init failed; reconcile targets the shared queue", "error", err)
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	jobQueue, err := queue.NewRedisQueue(log, rdb,
		envutil.String("QUEUE_NAME", "watermark"),
		envutil.Int("QUEUE_MAX_RECEIVES", 5),
	)
	if err != nil {
		log.Error("queue init failed", "error", err)
		os.Exit(1)
	}

	if dryRun {
		entries, err := outbox.ListUndispatched(ctx, nil, 0, 1000)
		if err != nil {
			log.Error("list undispatched failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("pending outbox entries: %d\n", len(entries))
		for _, e := range entries {
			fmt.Printf("  %s  created %s\n", e.ID, e.CreatedAt.Format(time.RFC3339))
		}
	} else {
		sent, err := jobs.NewOutboxSweeper(log, outbox, jobQueue).Sweep(ctx)
		if err != nil {
			log.Error("sweep failed", "sent", sent, "error", err)
			os.Exit(1)
		}
		fmt.Printf("re-sent %d outbox entries\n", sent)
	}

	if reporter, ok := jobQueue.(depthReporter); ok {
		ready, inflight, err := reporter.Depth(ctx)
		if err != nil {
			log.Warn("queue depth read failed", "error", err)
			return
		}
		dead, err := reporter.DeadDepth(ctx)
		if err != nil {
			log.Warn("dead-letter depth read failed", "error", err)
			return
		}
		fmt.Printf("queue depth: ready=%d inflight=%d dead=%d\n", ready, inflight, dead)
	}
}
