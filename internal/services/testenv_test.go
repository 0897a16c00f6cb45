package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/platform/storage"
	"github.com/yungbote/hatchmark-backend/internal/queue"
	"github.com/yungbote/hatchmark-backend/internal/repos"
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

// gradientPNG renders a smooth diagonal ramp. Perceptually very far from
// the checkerboard below.
func gradientPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8((x*255 + y*255) / 126)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return encodePNG(t, img)
}

func checkerPNG(t *testing.T, cell int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{A: 255})
			}
		}
	}
	return encodePNG(t, img)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// hexFingerprint pads suffix to the stored 64-char width.
func hexFingerprint(suffix string) string {
	return strings.Repeat("0", 64-len(suffix)) + suffix
}

type testEnv struct {
	db           *gorm.DB
	log          *logger.Logger
	ledger       repos.LedgerRepo
	outbox       repos.OutboxRepo
	store        *storage.MemoryStore
	queue        *queue.MemoryQueue
	fingerprints FingerprintService
	detector     DuplicateDetector
	registration RegistrationService
	verification VerificationService
}

func newTestEnv(t *testing.T, policy RegistrationPolicy) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	ledger := repos.NewLedgerRepo(db, log)
	outbox := repos.NewOutboxRepo(db, log)
	store := storage.NewMemoryStore()
	q := queue.NewMemoryQueue(5)
	fingerprints := NewFingerprintService(log)
	detector := NewDuplicateDetector(db, log, ledger)
	registration := NewRegistrationService(db, log, ledger, outbox, fingerprints, detector, q, policy)
	verification := NewVerificationService(db, log, ledger, fingerprints, detector, policy.HammingThreshold)
	return &testEnv{
		db:           db,
		log:          log,
		ledger:       ledger,
		outbox:       outbox,
		store:        store,
		queue:        q,
		fingerprints: fingerprints,
		detector:     detector,
		registration: registration,
		verification: verification,
	}
}
