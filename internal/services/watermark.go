package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/hatchmark-backend/internal/imaging"
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/platform/storage"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

// WatermarkProfile shapes the embedded payload. Static across a
// deployment; the per-asset fields come from the job.
type WatermarkProfile struct {
	Service string            `yaml:"service" json:"service"`
	Version string            `yaml:"version" json:"version"`
	Fields  map[string]string `yaml:"fields" json:"fields,omitempty"`
}

func DefaultWatermarkProfile() WatermarkProfile {
	return WatermarkProfile{Service: "hatchmark", Version: "1.0"}
}

// LoadWatermarkProfile reads WATERMARK_PROFILE_FILE when set, otherwise
// returns the built-in profile.
func LoadWatermarkProfile() (WatermarkProfile, error) {
	path := envutil.String("WATERMARK_PROFILE_FILE", "")
	if path == "" {
		return DefaultWatermarkProfile(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return WatermarkProfile{}, fmt.Errorf("read watermark profile: %w", err)
	}
	profile := DefaultWatermarkProfile()
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return WatermarkProfile{}, fmt.Errorf("parse watermark profile: %w", err)
	}
	if profile.Service == "" {
		profile.Service = "hatchmark"
	}
	return profile, nil
}

// watermarkPayload is the JSON embedded into pixel LSBs. Field values
// derive only from the profile and the job, so re-running one job embeds
// identical bytes.
type watermarkPayload struct {
	Service        string            `json:"service"`
	Version        string            `json:"version"`
	AssetID        string            `json:"assetId"`
	PerceptualHash string            `json:"perceptualHash"`
	Timestamp      string            `json:"timestamp"`
	Watermarked    bool              `json:"watermarked"`
	Fields         map[string]string `json:"fields,omitempty"`
}

// ProcessedKey is the fixed output key for an asset's watermarked copy.
// Always .png: the embed only survives lossless encoding.
func ProcessedKey(assetID uuid.UUID) string {
	return fmt.Sprintf("watermarked/%s.png", assetID)
}

type WatermarkService interface {
	// Apply downloads the original, embeds the payload, uploads the copy
	// and returns its key. Overwrites are the idempotence mechanism: the
	// same job always lands on the same key with the same bytes.
	Apply(ctx context.Context, job types.WatermarkJob) (string, error)
}

type watermarkService struct {
	log     *logger.Logger
	store   storage.BlobStore
	profile WatermarkProfile
}

func NewWatermarkService(baseLog *logger.Logger, store storage.BlobStore, profile WatermarkProfile) WatermarkService {
	return &watermarkService{
		log:     baseLog.With("service", "WatermarkService"),
		store:   store,
		profile: profile,
	}
}

func (s *watermarkService) Apply(ctx context.Context, job types.WatermarkJob) (string, error) {
	raw, err := storage.ReadAll(ctx, s.store, job.ObjectKey)
	if err != nil {
		return "", err
	}
	img, _, err := imaging.Decode(raw)
	if err != nil {
		return "", err
	}

	payload := watermarkPayload{
		Service:        s.profile.Service,
		Version:        s.profile.Version,
		AssetID:        job.AssetID.String(),
		PerceptualHash: job.Fingerprint,
		Timestamp:      job.EnqueuedAt.UTC().Format(time.RFC3339),
		Watermarked:    true,
		Fields:         s.profile.Fields,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal watermark payload: %w", err)
	}

	marked, err := imaging.Embed(img, string(body))
	if err != nil {
		return "", err
	}
	out, err := imaging.EncodePNG(marked)
	if err != nil {
		return "", err
	}

	key := ProcessedKey(job.AssetID)
	if err := s.store.Put(ctx, key, bytes.NewReader(out), "image/png"); err != nil {
		return "", err
	}
	s.log.Info("watermarked asset stored", "assetId", job.AssetID, "key", key, "bytes", len(out))
	return key, nil
}
