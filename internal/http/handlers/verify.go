package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/hatchmark-backend/internal/http/response"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/services"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

type VerifyHandler struct {
	log          *logger.Logger
	verification services.VerificationService
}

func NewVerifyHandler(log *logger.Logger, verification services.VerificationService) *VerifyHandler {
	return &VerifyHandler{
		log:          log.With("handler", "VerifyHandler"),
		verification: verification,
	}
}

// Lookup is the point query: GET /verify?assetId=.
func (h *VerifyHandler) Lookup(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("assetId"))
	if raw == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_asset_id", nil)
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_asset_id", err)
		return
	}
	record, err := h.verification.LookupAsset(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, record)
}

type verifyResponse struct {
	Authentic  bool                 `json:"authentic"`
	MatchType  string               `json:"matchType"`
	Confidence float64              `json:"confidence"`
	Distance   int                  `json:"distance"`
	AssetID    string               `json:"assetId,omitempty"`
	Record     *types.AssetRecord   `json:"record,omitempty"`
	Candidates []services.Candidate `json:"candidates,omitempty"`
}

// Verify fingerprints a probe file and reports the best ledger match.
func (h *VerifyHandler) Verify(c *gin.Context) {
	raw, err := readMultipartFile(c, "file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	result, err := h.verification.VerifyImage(c.Request.Context(), raw)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}

	body := verifyResponse{
		Authentic:  result.Authentic,
		MatchType:  result.MatchType,
		Confidence: result.Confidence,
		Distance:   result.Distance,
		Record:     result.Record,
		Candidates: result.Candidates,
	}
	if result.Record != nil {
		body.AssetID = result.Record.AssetID.String()
	}
	response.RespondOK(c, body)
}
