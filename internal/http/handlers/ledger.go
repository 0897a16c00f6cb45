package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/hatchmark-backend/internal/http/response"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/repos"
	"github.com/yungbote/hatchmark-backend/internal/services"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

type LedgerHandler struct {
	log          *logger.Logger
	ledger       repos.LedgerRepo
	registration services.RegistrationService
}

func NewLedgerHandler(log *logger.Logger, ledger repos.LedgerRepo, registration services.RegistrationService) *LedgerHandler {
	return &LedgerHandler{
		log:          log.With("handler", "LedgerHandler"),
		ledger:       ledger,
		registration: registration,
	}
}

// List pages the ledger newest first: GET /ledger?limit=&offset=.
func (h *LedgerHandler) List(c *gin.Context) {
	limit := parseQueryInt(c, "limit", defaultPageLimit)
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := parseQueryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx := c.Request.Context()
	assets, err := h.ledger.List(ctx, nil, limit, offset)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	total, err := h.ledger.Count(ctx, nil)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"assets":     assets,
		"totalCount": total,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

type registerFingerprintRequest struct {
	PerceptualHash string         `json:"perceptualHash"`
	ObjectKey      string         `json:"objectKey"`
	CreatorID      string         `json:"creatorId"`
	Metadata       map[string]any `json:"metadata"`
}

// Register writes a record for a precomputed fingerprint: POST /ledger.
// Dedup and job dispatch run exactly as for image uploads.
func (h *LedgerHandler) Register(c *gin.Context) {
	var req registerFingerprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	extra := map[string]any{}
	for k, v := range req.Metadata {
		extra[k] = v
	}
	if v := strings.TrimSpace(req.CreatorID); v != "" {
		extra["creatorId"] = v
	}

	outcome, err := h.registration.RegisterFingerprint(
		c.Request.Context(),
		strings.TrimSpace(req.PerceptualHash),
		strings.TrimSpace(req.ObjectKey),
		extra,
	)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	status, body := registrationResponse(outcome)
	c.JSON(status, body)
}

func parseQueryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
