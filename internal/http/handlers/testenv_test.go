package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
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

func checkerPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{A: 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// handlerEnv wires the real services over in-memory backends and mounts
// the handlers on a bare engine with the production paths.
type handlerEnv struct {
	db           *gorm.DB
	log          *logger.Logger
	ledger       repos.LedgerRepo
	store        *storage.MemoryStore
	queue        *queue.MemoryQueue
	registration services.RegistrationService
	router       *gin.Engine
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("UPLOAD_TOKEN_SECRET", "test-secret")
	t.Setenv("PUBLIC_BASE_URL", "http://localhost:8080")

	db := newTestDB(t)
	log := newTestLogger(t)
	ledger := repos.NewLedgerRepo(db, log)
	outbox := repos.NewOutboxRepo(db, log)
	store := storage.NewMemoryStore()
	q := queue.NewMemoryQueue(5)

	fingerprints := services.NewFingerprintService(log)
	detector := services.NewDuplicateDetector(db, log, ledger)
	registration := services.NewRegistrationService(db, log, ledger, outbox, fingerprints, detector, q, services.RegistrationPolicy{})
	verification := services.NewVerificationService(db, log, ledger, fingerprints, detector, 0)
	uploads, err := services.NewUploadService(log, store, services.NewMemorySessionTracker(), registration)
	if err != nil {
		t.Fatalf("new upload service: %v", err)
	}

	uploadHandler := NewUploadHandler(log, uploads, fingerprints, detector, 0)
	verifyHandler := NewVerifyHandler(log, verification)
	ledgerHandler := NewLedgerHandler(log, ledger, registration)
	processHandler := NewProcessHandler(log, uploads)
	healthHandler := NewHealthHandler("test")

	r := gin.New()
	r.GET("/health", healthHandler.HealthCheck)
	r.POST("/uploads/initiate", uploadHandler.Initiate)
	r.PUT("/uploads/file/:uploadId", uploadHandler.StoreFile)
	r.GET("/upload-status/:uploadId", uploadHandler.Status)
	r.POST("/uploads/complete", uploadHandler.Complete)
	r.POST("/uploads/check-duplicate", uploadHandler.CheckDuplicate)
	r.GET("/verify", verifyHandler.Lookup)
	r.POST("/verify", verifyHandler.Verify)
	r.GET("/ledger", ledgerHandler.List)
	r.POST("/ledger", ledgerHandler.Register)
	r.POST("/process", processHandler.Process)

	return &handlerEnv{
		db:           db,
		log:          log,
		ledger:       ledger,
		store:        store,
		queue:        q,
		registration: registration,
		router:       r,
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doMultipart(t *testing.T, router *gin.Engine, path, field, filename string, raw []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(raw); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

// errorCode pulls the code out of an error envelope.
func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rr, &envelope)
	return envelope.Error.Code
}
