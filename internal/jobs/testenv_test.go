package jobs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/platform/storage"
	"github.com/yungbote/hatchmark-backend/internal/queue"
	"github.com/yungbote/hatchmark-backend/internal/repos"
	"github.com/yungbote/hatchmark-backend/internal/services"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(&types.AssetRecord{}, &types.OutboxEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return gdb
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func gradientPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8((x*255 + y*255) / 126)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func hexFP(suffix string) string {
	return strings.Repeat("0", 64-len(suffix)) + suffix
}

// flipLowBits xors the final hex digit with mask, moving the fingerprint a
// known Hamming distance from the original.
func flipLowBits(t *testing.T, fingerprint string, mask uint64) string {
	t.Helper()
	last := fingerprint[len(fingerprint)-1:]
	nibble, err := strconv.ParseUint(last, 16, 8)
	if err != nil {
		t.Fatalf("parse nibble %q: %v", last, err)
	}
	return fingerprint[:len(fingerprint)-1] + strconv.FormatUint(nibble^mask, 16)
}

type workerEnv struct {
	db           *gorm.DB
	log          *logger.Logger
	ledger       repos.LedgerRepo
	outbox       repos.OutboxRepo
	store        *storage.MemoryStore
	queue        *queue.MemoryQueue
	registration services.RegistrationService
	verification services.VerificationService
	worker       *Watermarker
}

func newWorkerEnv(t *testing.T, maxReceives int) *workerEnv {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	ledger := repos.NewLedgerRepo(db, log)
	outbox := repos.NewOutboxRepo(db, log)
	store := storage.NewMemoryStore()
	q := queue.NewMemoryQueue(maxReceives)
	fingerprints := services.NewFingerprintService(log)
	detector := services.NewDuplicateDetector(db, log, ledger)
	policy := services.RegistrationPolicy{HammingThreshold: 5}
	registration := services.NewRegistrationService(db, log, ledger, outbox, fingerprints, detector, q, policy)
	verification := services.NewVerificationService(db, log, ledger, fingerprints, detector, policy.HammingThreshold)
	watermark := services.NewWatermarkService(log, store, services.DefaultWatermarkProfile())
	return &workerEnv{
		db:           db,
		log:          log,
		ledger:       ledger,
		outbox:       outbox,
		store:        store,
		queue:        q,
		registration: registration,
		verification: verification,
		worker:       NewWatermarker(log, q, ledger, watermark),
	}
}

// seedAsset inserts a ledger row, stores original bytes at key and returns
// the matching job. EnqueuedAt is fixed so repeated runs embed identical
// payloads.
func (env *workerEnv) seedAsset(t *testing.T, fpSuffix, key string) types.WatermarkJob {
	t.Helper()
	ctx := context.Background()
	record := &types.AssetRecord{
		AssetID:     uuid.New(),
		Fingerprint: hexFP(fpSuffix),
		ObjectRef:   key,
		Status:      types.StatusRegistered,
	}
	if _, err := env.ledger.InsertIfAbsent(ctx, nil, record); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	if err := env.store.Put(ctx, key, bytes.NewReader(gradientPNG(t)), "image/png"); err != nil {
		t.Fatalf("store original: %v", err)
	}
	return types.WatermarkJob{
		AssetID:     record.AssetID,
		ObjectKey:   key,
		Fingerprint: record.Fingerprint,
		EnqueuedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// receiveOne pulls exactly one delivery or fails the test.
func (env *workerEnv) receiveOne(t *testing.T, visibility time.Duration) queue.Delivery {
	t.Helper()
	ds, err := env.queue.Receive(context.Background(), 10, visibility)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(ds) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(ds))
	}
	return ds[0]
}

func (env *workerEnv) reload(t *testing.T, id uuid.UUID) *types.AssetRecord {
	t.Helper()
	record, err := env.ledger.GetByAssetID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return record
}
