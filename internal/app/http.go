package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/hatchmark-backend/internal/http"
	httpH "github.com/yungbote/hatchmark-backend/internal/http/handlers"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Upload  *httpH.UploadHandler
	Verify  *httpH.VerifyHandler
	Ledger  *httpH.LedgerHandler
	Process *httpH.ProcessHandler
}

func wireHandlers(log *logger.Logger, cfg Config, reposet Repos, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(cfg.Version),
		Upload:  httpH.NewUploadHandler(log, serviceset.Uploads, serviceset.Fingerprints, serviceset.Detector, cfg.HammingThreshold),
		Verify:  httpH.NewVerifyHandler(log, serviceset.Verification),
		Ledger:  httpH.NewLedgerHandler(log, reposet.Ledger, serviceset.Registration),
		Process: httpH.NewProcessHandler(log, serviceset.Uploads),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		HealthHandler:  handlers.Health,
		UploadHandler:  handlers.Upload,
		VerifyHandler:  handlers.Verify,
		LedgerHandler:  handlers.Ledger,
		ProcessHandler: handlers.Process,
		EnableTracing:  cfg.TracingEnabled,
	})
}
