package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/hatchmark-backend/internal/http/handlers"
	httpMW "github.com/yungbote/hatchmark-backend/internal/http/middleware"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler  *httpH.HealthHandler
	UploadHandler  *httpH.UploadHandler
	VerifyHandler  *httpH.VerifyHandler
	LedgerHandler  *httpH.LedgerHandler
	ProcessHandler *httpH.ProcessHandler

	// EnableTracing adds the otelgin middleware; pair with
	// observability.InitOTel.
	EnableTracing bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.EnableTracing {
		r.Use(otelgin.Middleware("hatchmark"))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}

	if cfg.UploadHandler != nil {
		r.POST("/uploads/initiate", cfg.UploadHandler.Initiate)
		r.PUT("/uploads/file/:uploadId", cfg.UploadHandler.StoreFile)
		r.GET("/upload-status/:uploadId", cfg.UploadHandler.Status)
		r.POST("/uploads/complete", cfg.UploadHandler.Complete)
		r.POST("/uploads/check-duplicate", cfg.UploadHandler.CheckDuplicate)
	}

	if cfg.VerifyHandler != nil {
		r.GET("/verify", cfg.VerifyHandler.Lookup)
		r.POST("/verify", cfg.VerifyHandler.Verify)
	}

	if cfg.LedgerHandler != nil {
		r.GET("/ledger", cfg.LedgerHandler.List)
		r.POST("/ledger", cfg.LedgerHandler.Register)
	}

	if cfg.ProcessHandler != nil {
		r.POST("/process", cfg.ProcessHandler.Process)
	}

	return r
}
