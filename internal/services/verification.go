package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/hatchmark-backend/internal/imaging"
	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/repos"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

const (
	MatchExact   = "exact"
	MatchSimilar = "similar"
	MatchNone    = "none"
)

// VerificationResult reports the best ledger match for a probe image.
// Confidence is 1 - distance/256; exact matches score 1.0.
type VerificationResult struct {
	Authentic  bool               `json:"authentic"`
	MatchType  string             `json:"matchType"`
	Confidence float64            `json:"confidence"`
	Distance   int                `json:"distance"`
	Record     *types.AssetRecord `json:"record,omitempty"`
	Candidates []Candidate        `json:"candidates,omitempty"`
}

type VerificationService interface {
	// VerifyImage fingerprints the probe and always runs both the exact
	// and the similarity phase, whatever the registration policy blocks.
	VerifyImage(ctx context.Context, raw []byte) (*VerificationResult, error)
	VerifyFingerprint(ctx context.Context, fingerprint string) (*VerificationResult, error)
	LookupAsset(ctx context.Context, id uuid.UUID) (*types.AssetRecord, error)
}

type verificationService struct {
	db           *gorm.DB
	log          *logger.Logger
	ledger       repos.LedgerRepo
	fingerprints FingerprintService
	detector     DuplicateDetector
	threshold    int
}

func NewVerificationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ledger repos.LedgerRepo,
	fingerprints FingerprintService,
	detector DuplicateDetector,
	hammingThreshold int,
) VerificationService {
	if hammingThreshold <= 0 {
		hammingThreshold = 5
	}
	return &verificationService{
		db:           db,
		log:          baseLog.With("service", "VerificationService"),
		ledger:       ledger,
		fingerprints: fingerprints,
		detector:     detector,
		threshold:    hammingThreshold,
	}
}

func (s *verificationService) VerifyImage(ctx context.Context, raw []byte) (*VerificationResult, error) {
	result, err := s.fingerprints.Compute(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.VerifyFingerprint(ctx, result.Fingerprint)
}

func (s *verificationService) VerifyFingerprint(ctx context.Context, fingerprint string) (*VerificationResult, error) {
	fingerprint = strings.ToLower(fingerprint)
	if !imaging.ValidFingerprint(fingerprint) {
		return nil, fmt.Errorf("%w: fingerprint must be %d hex chars",
			errors.ErrInvalidArgument, imaging.FingerprintBits/4)
	}

	exact, err := s.detector.FindExact(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	candidates, err := s.detector.FindSimilar(ctx, fingerprint, s.threshold)
	if err != nil {
		return nil, err
	}

	if exact != nil {
		return &VerificationResult{
			Authentic:  true,
			MatchType:  MatchExact,
			Confidence: 1.0,
			Distance:   0,
			Record:     exact,
			Candidates: candidates,
		}, nil
	}
	if len(candidates) > 0 {
		best := candidates[0]
		record, err := s.ledger.GetByAssetID(ctx, nil, best.AssetID)
		if err != nil {
			return nil, err
		}
		matchType := MatchSimilar
		if best.Distance == 0 {
			matchType = MatchExact
		}
		return &VerificationResult{
			Authentic:  true,
			MatchType:  matchType,
			Confidence: best.Similarity,
			Distance:   best.Distance,
			Record:     record,
			Candidates: candidates,
		}, nil
	}
	return &VerificationResult{
		Authentic:  false,
		MatchType:  MatchNone,
		Confidence: 0,
		Distance:   -1,
	}, nil
}

func (s *verificationService) LookupAsset(ctx context.Context, id uuid.UUID) (*types.AssetRecord, error) {
	return s.ledger.GetByAssetID(ctx, nil, id)
}
