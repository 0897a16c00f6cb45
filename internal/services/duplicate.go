package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/hatchmark-backend/internal/imaging"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/repos"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

const defaultScanPageSize = 500

// Candidate is one ledger record within the Hamming threshold of a probe
// fingerprint.
type Candidate struct {
	AssetID     uuid.UUID `json:"assetId"`
	Fingerprint string    `json:"perceptualHash"`
	Distance    int       `json:"distance"`
	Similarity  float64   `json:"similarity"`
}

// DuplicateDetector answers "have we seen this image before". The exact
// lookup is authoritative for equality; the similarity scan is advisory
// and linear over the ledger.
type DuplicateDetector interface {
	// FindExact returns the oldest record carrying exactly this
	// fingerprint, or nil when none exists.
	FindExact(ctx context.Context, fingerprint string) (*types.AssetRecord, error)
	// FindSimilar ranks records within maxDistance by ascending distance,
	// tie-broken by assetId for stable output.
	FindSimilar(ctx context.Context, fingerprint string, maxDistance int) ([]Candidate, error)
}

type duplicateDetector struct {
	db           *gorm.DB
	log          *logger.Logger
	ledger       repos.LedgerRepo
	scanPageSize int
}

func NewDuplicateDetector(db *gorm.DB, baseLog *logger.Logger, ledger repos.LedgerRepo) DuplicateDetector {
	return &duplicateDetector{
		db:           db,
		log:          baseLog.With("service", "DuplicateDetector"),
		ledger:       ledger,
		scanPageSize: defaultScanPageSize,
	}
}

func (d *duplicateDetector) FindExact(ctx context.Context, fingerprint string) (*types.AssetRecord, error) {
	matches, err := d.ledger.FindByFingerprint(ctx, nil, fingerprint)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (d *duplicateDetector) FindSimilar(ctx context.Context, fingerprint string, maxDistance int) ([]Candidate, error) {
	if maxDistance < 0 {
		return nil, nil
	}
	var out []Candidate
	err := d.ledger.ScanFingerprints(ctx, nil, d.scanPageSize, func(page []repos.FingerprintEntry) error {
		for _, entry := range page {
			dist, err := imaging.Distance(fingerprint, entry.Fingerprint)
			if err != nil {
				// A malformed stored fingerprint must not sink the scan.
				d.log.Warn("skipping uncomparable fingerprint", "assetId", entry.AssetID, "error", err)
				continue
			}
			if dist <= maxDistance {
				out = append(out, Candidate{
					AssetID:     entry.AssetID,
					Fingerprint: entry.Fingerprint,
					Distance:    dist,
					Similarity:  imaging.Similarity(dist, imaging.FingerprintBits),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].AssetID.String() < out[j].AssetID.String()
	})
	return out, nil
}
