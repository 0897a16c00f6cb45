package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/yungbote/hatchmark-backend/internal/imaging"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

// FingerprintResult carries the 256-bit perceptual fingerprint plus the
// secondary hashes and image facts recorded as registration metadata.
type FingerprintResult struct {
	Fingerprint    string
	AverageHash    string
	DifferenceHash string
	Width          int
	Height         int
	Format         string
	SizeBytes      int
}

type FingerprintService interface {
	Compute(ctx context.Context, raw []byte) (*FingerprintResult, error)
}

type fingerprintService struct {
	log *logger.Logger
}

func NewFingerprintService(baseLog *logger.Logger) FingerprintService {
	return &fingerprintService{log: baseLog.With("service", "FingerprintService")}
}

func (s *fingerprintService) Compute(_ context.Context, raw []byte) (*FingerprintResult, error) {
	img, format, err := imaging.Decode(raw)
	if err != nil {
		return nil, err
	}
	// Hash the normalized raster, not the decoder's native layout, so the
	// fingerprint is identical across source encodings of the same pixels.
	rgba := imaging.NormalizeRGBA(img)
	fp, err := imaging.Perceptual(rgba)
	if err != nil {
		return nil, err
	}
	avg, err := imaging.Average(rgba)
	if err != nil {
		return nil, err
	}
	diff, err := imaging.Difference(rgba)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	return &FingerprintResult{
		Fingerprint:    fp,
		AverageHash:    avg,
		DifferenceHash: diff,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		Format:         format,
		SizeBytes:      len(raw),
	}, nil
}

// MetadataJSON folds the secondary hashes and image facts into the ledger
// metadata column, on top of any caller-supplied fields.
func (r *FingerprintResult) MetadataJSON(extra map[string]any) (datatypes.JSON, error) {
	meta := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		meta[k] = v
	}
	meta["additionalHashes"] = map[string]string{
		"averageHash":    r.AverageHash,
		"differenceHash": r.DifferenceHash,
	}
	meta["imageInfo"] = map[string]any{
		"width":     r.Width,
		"height":    r.Height,
		"format":    r.Format,
		"sizeBytes": r.SizeBytes,
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return datatypes.JSON(b), nil
}
