package handlers

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/hatchmark-backend/internal/services"
)

var errMissingUploadRef = stderrors.New("uploadId or objectKey required")

// registrationResponse shapes a coordinator outcome: a fresh record
// surfaces its identity with 201, a duplicate points at the winning record
// with 200.
func registrationResponse(outcome *services.RegistrationOutcome) (int, gin.H) {
	if outcome.Duplicate() {
		body := gin.H{
			"isDuplicate":   true,
			"status":        outcome.Outcome,
			"existingAsset": outcome.Existing,
			"distance":      outcome.Distance,
		}
		if len(outcome.Candidates) > 0 {
			body["candidates"] = outcome.Candidates
		}
		return http.StatusOK, body
	}

	record := outcome.Record
	body := gin.H{
		"assetId":        record.AssetID,
		"perceptualHash": record.Fingerprint,
		"status":         record.Status,
		"timestamp":      record.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(outcome.Candidates) > 0 {
		body["nearMatches"] = outcome.Candidates
	}
	return http.StatusCreated, body
}
