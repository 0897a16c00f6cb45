package app

import (
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/hatchmark-backend/internal/jobs"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/platform/storage"
	"github.com/yungbote/hatchmark-backend/internal/queue"
	"github.com/yungbote/hatchmark-backend/internal/services"
)

type Services struct {
	Store    storage.BlobStore
	Jobs     queue.Queue
	Sessions services.SessionTracker

	Fingerprints services.FingerprintService
	Detector     services.DuplicateDetector
	Registration services.RegistrationService
	Verification services.VerificationService
	Uploads      services.UploadService

	Sweeper *jobs.OutboxSweeper
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, rdb *goredis.Client) (Services, error) {
	log.Info("Wiring services...")

	store, err := resolveBlobStore(log)
	if err != nil {
		return Services{}, err
	}

	// Redis is optional in development; without it the queue and the
	// session tracker fall back to their in-process implementations and
	// the API and worker must share one process.
	var jobQueue queue.Queue
	var sessions services.SessionTracker
	if rdb != nil {
		jobQueue, err = queue.NewRedisQueue(log, rdb, cfg.QueueName, cfg.QueueMaxReceives)
		if err != nil {
			return Services{}, err
		}
		sessions, err = services.NewRedisSessionTracker(log, rdb)
		if err != nil {
			return Services{}, err
		}
	} else {
		log.Warn("REDIS_ADDR unset; using in-process queue and session tracker")
		jobQueue = queue.NewMemoryQueue(cfg.QueueMaxReceives)
		sessions = services.NewMemorySessionTracker()
	}

	policy := services.RegistrationPolicy{
		HammingThreshold: cfg.HammingThreshold,
		BlockOnSimilar:   cfg.BlockOnSimilar,
	}

	fingerprints := services.NewFingerprintService(log)
	detector := services.NewDuplicateDetector(db, log, reposet.Ledger)
	registration := services.NewRegistrationService(db, log, reposet.Ledger, reposet.Outbox, fingerprints, detector, jobQueue, policy)
	verification := services.NewVerificationService(db, log, reposet.Ledger, fingerprints, detector, cfg.HammingThreshold)
	uploads, err := services.NewUploadService(log, store, sessions, registration)
	if err != nil {
		return Services{}, err
	}

	sweeper := jobs.NewOutboxSweeper(log, reposet.Outbox, jobQueue)

	return Services{
		Store:        store,
		Jobs:         jobQueue,
		Sessions:     sessions,
		Fingerprints: fingerprints,
		Detector:     detector,
		Registration: registration,
		Verification: verification,
		Uploads:      uploads,
		Sweeper:      sweeper,
	}, nil
}
