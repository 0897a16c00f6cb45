package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/hatchmark-backend/internal/http/response"
)

type HealthHandler struct {
	version string
}

func NewHealthHandler(version string) *HealthHandler {
	if version == "" {
		version = "dev"
	}
	return &HealthHandler{version: version}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"status":    "ok",
		"service":   "hatchmark",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
