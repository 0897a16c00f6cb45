package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/hatchmark-backend/internal/http/response"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/services"
)

// ProcessHandler registers objects already sitting in storage, the direct
// trigger used by dev tooling and storage-event bridges.
type ProcessHandler struct {
	log     *logger.Logger
	uploads services.UploadService
}

func NewProcessHandler(log *logger.Logger, uploads services.UploadService) *ProcessHandler {
	return &ProcessHandler{
		log:     log.With("handler", "ProcessHandler"),
		uploads: uploads,
	}
}

type processRequest struct {
	ObjectKey string `json:"objectKey"`
}

func (h *ProcessHandler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	key := strings.TrimSpace(req.ObjectKey)
	if key == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_object_key", nil)
		return
	}

	outcome, err := h.uploads.Complete(c.Request.Context(), "", key, nil)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	status, body := registrationResponse(outcome)
	c.JSON(status, body)
}
