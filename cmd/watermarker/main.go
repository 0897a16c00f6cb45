// The watermarker binary runs the background worker pool. It shares the
// ledger and the blob store with the API process and consumes watermark
// jobs from the redis queue until signaled to stop.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/hatchmark-backend/internal/clients/redis"
	"github.com/yungbote/hatchmark-backend/internal/db"
	"github.com/yungbote/hatchmark-backend/internal/jobs"
	"github.com/yungbote/hatchmark-backend/internal/observability"
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/platform/shutdown"
	"github.com/yungbote/hatchmark-backend/internal/platform/storage"
	"github.com/yungbote/hatchmark-backend/internal/queue"
	"github.com/yungbote/hatchmark-backend/internal/repos"
	"github.com/yungbote/hatchmark-backend/internal/services"
)

func main() {
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

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "hatchmark-watermarker",
		Environment: envutil.String("APP_MODE", "development"),
		Version:     envutil.String("SERVICE_VERSION", "dev"),
	})
	if otelShutdown != nil {
		defer func() { _ = otelShutdown(context.Background()) }()
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	ledger := repos.NewLedgerRepo(pg.DB(), log)

	store, err := storage.New(log)
	if err != nil {
		log.Error("blob store init failed", "error", err)
		os.Exit(1)
	}

	// A standalone worker only makes sense against the shared queue.
	rdb, err := redis.NewClient(log)
	if err != nil {
		log.Error("redis init failed; the worker needs the shared queue", "error", err)
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

	profile, err := services.LoadWatermarkProfile()
	if err != nil {
		log.Error("watermark profile load failed", "error", err)
		os.Exit(1)
	}
	watermark := services.NewWatermarkService(log, store, profile)

	worker := jobs.NewWatermarker(log, jobQueue, ledger, watermark)
	if err := worker.Run(ctx); err != nil {
		log.Error("worker exited", "error", err)
		os.Exit(1)
	}
}
