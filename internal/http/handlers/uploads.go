package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/hatchmark-backend/internal/http/response"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/services"
)

// maxProbeBytes caps multipart probe files on the advisory endpoints.
const maxProbeBytes = 32 << 20

type UploadHandler struct {
	log          *logger.Logger
	uploads      services.UploadService
	fingerprints services.FingerprintService
	detector     services.DuplicateDetector
	threshold    int
}

func NewUploadHandler(
	log *logger.Logger,
	uploads services.UploadService,
	fingerprints services.FingerprintService,
	detector services.DuplicateDetector,
	hammingThreshold int,
) *UploadHandler {
	if hammingThreshold <= 0 {
		hammingThreshold = 5
	}
	return &UploadHandler{
		log:          log.With("handler", "UploadHandler"),
		uploads:      uploads,
		fingerprints: fingerprints,
		detector:     detector,
		threshold:    hammingThreshold,
	}
}

type initiateRequest struct {
	Filename    string `json:"filename"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
}

// Initiate hands out a token-authorized upload URL for a validated
// filename.
func (h *UploadHandler) Initiate(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.uploads.Initiate(c.Request.Context(), req.Filename)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// StoreFile receives the raw PUT body authorized by the initiate token.
func (h *UploadHandler) StoreFile(c *gin.Context) {
	uploadID := c.Param("uploadId")
	token := c.Query("token")
	contentType := c.GetHeader("Content-Type")

	session, err := h.uploads.Store(c.Request.Context(), uploadID, token, contentType, c.Request.Body)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, session)
}

func (h *UploadHandler) Status(c *gin.Context) {
	session, err := h.uploads.Status(c.Request.Context(), c.Param("uploadId"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, session)
}

type completeRequest struct {
	UploadID  string `json:"uploadId"`
	ObjectKey string `json:"objectKey"`
	Creator   string `json:"creator"`
	Email     string `json:"email"`
}

// Complete registers the uploaded object through the coordinator and
// reports either the fresh record or the duplicate it collided with.
func (h *UploadHandler) Complete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if strings.TrimSpace(req.UploadID) == "" && strings.TrimSpace(req.ObjectKey) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", errMissingUploadRef)
		return
	}

	extra := map[string]any{}
	if v := strings.TrimSpace(req.Creator); v != "" {
		extra["creator"] = v
	}
	if v := strings.TrimSpace(req.Email); v != "" {
		extra["email"] = v
	}

	outcome, err := h.uploads.Complete(c.Request.Context(), strings.TrimSpace(req.UploadID), strings.TrimSpace(req.ObjectKey), extra)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	status, body := registrationResponse(outcome)
	c.JSON(status, body)
}

// CheckDuplicate runs the duplicate gates against a probe file without
// touching the ledger.
func (h *UploadHandler) CheckDuplicate(c *gin.Context) {
	raw, err := readMultipartFile(c, "file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.fingerprints.Compute(ctx, raw)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	exact, err := h.detector.FindExact(ctx, result.Fingerprint)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	candidates, err := h.detector.FindSimilar(ctx, result.Fingerprint, h.threshold)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}

	body := gin.H{
		"isDuplicate":    exact != nil,
		"perceptualHash": result.Fingerprint,
	}
	if exact != nil {
		body["existingAsset"] = exact
	}
	if len(candidates) > 0 {
		body["nearMatches"] = candidates
	}
	response.RespondOK(c, body)
}

// readMultipartFile pulls one bounded file out of a multipart form.
func readMultipartFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(io.LimitReader(f, maxProbeBytes))
}
