package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/hatchmark-backend/internal/imaging"
	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/queue"
	"github.com/yungbote/hatchmark-backend/internal/repos"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

// RegistrationPolicy tunes the duplicate gate. The exact-match block is
// not a policy knob; only near matches are negotiable.
type RegistrationPolicy struct {
	// HammingThreshold bounds the advisory similarity scan.
	HammingThreshold int
	// BlockOnSimilar upgrades a near match within the threshold from
	// advisory to blocking.
	BlockOnSimilar bool
}

// RegistrationOutcome reports either a fresh REGISTERED record or a
// DUPLICATE_DETECTED resolution against the record that won.
type RegistrationOutcome struct {
	Outcome    string             `json:"outcome"`
	Record     *types.AssetRecord `json:"record,omitempty"`
	Existing   *types.AssetRecord `json:"existing,omitempty"`
	Distance   int                `json:"distance"`
	Candidates []Candidate        `json:"candidates,omitempty"`
}

func (o *RegistrationOutcome) Duplicate() bool {
	return o != nil && o.Outcome == types.StatusDuplicateDetected
}

type RegistrationService interface {
	// RegisterImage fingerprints raw image bytes stored at objectRef and
	// runs duplicate check, conditional insert, and job dispatch.
	RegisterImage(ctx context.Context, raw []byte, objectRef string, extra map[string]any) (*RegistrationOutcome, error)
	// RegisterFingerprint registers a precomputed 64-hex fingerprint with
	// the same dedup and dispatch semantics.
	RegisterFingerprint(ctx context.Context, fingerprint, objectRef string, extra map[string]any) (*RegistrationOutcome, error)
}

type registrationService struct {
	db           *gorm.DB
	log          *logger.Logger
	ledger       repos.LedgerRepo
	outbox       repos.OutboxRepo
	fingerprints FingerprintService
	detector     DuplicateDetector
	jobs         queue.Queue
	policy       RegistrationPolicy
}

func NewRegistrationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ledger repos.LedgerRepo,
	outbox repos.OutboxRepo,
	fingerprints FingerprintService,
	detector DuplicateDetector,
	jobs queue.Queue,
	policy RegistrationPolicy,
) RegistrationService {
	if policy.HammingThreshold <= 0 {
		policy.HammingThreshold = 5
	}
	return &registrationService{
		db:           db,
		log:          baseLog.With("service", "RegistrationService"),
		ledger:       ledger,
		outbox:       outbox,
		fingerprints: fingerprints,
		detector:     detector,
		jobs:         jobs,
		policy:       policy,
	}
}

func (s *registrationService) RegisterImage(ctx context.Context, raw []byte, objectRef string, extra map[string]any) (*RegistrationOutcome, error) {
	if objectRef == "" {
		return nil, fmt.Errorf("%w: objectRef required", errors.ErrInvalidArgument)
	}
	result, err := s.fingerprints.Compute(ctx, raw)
	if err != nil {
		return nil, err
	}
	metadata, err := result.MetadataJSON(extra)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, result.Fingerprint, objectRef, metadata)
}

func (s *registrationService) RegisterFingerprint(ctx context.Context, fingerprint, objectRef string, extra map[string]any) (*RegistrationOutcome, error) {
	if objectRef == "" {
		return nil, fmt.Errorf("%w: objectRef required", errors.ErrInvalidArgument)
	}
	// Stored fingerprints are lowercase hex; fold the input so a submitted
	// hash can exact-match a computed one.
	fingerprint = strings.ToLower(fingerprint)
	if !imaging.ValidFingerprint(fingerprint) {
		return nil, fmt.Errorf("%w: fingerprint must be %d hex chars",
			errors.ErrInvalidArgument, imaging.FingerprintBits/4)
	}
	var metadata datatypes.JSON
	if len(extra) > 0 {
		b, err := json.Marshal(extra)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = datatypes.JSON(b)
	}
	return s.register(ctx, fingerprint, objectRef, metadata)
}

func (s *registrationService) register(ctx context.Context, fingerprint, objectRef string, metadata datatypes.JSON) (*RegistrationOutcome, error) {
	exact, err := s.detector.FindExact(ctx, fingerprint)
	if err != nil {
		return nil, err
	}

	// The scan stays advisory: a failure here must never block a
	// registration the conditional insert would accept.
	candidates, err := s.detector.FindSimilar(ctx, fingerprint, s.policy.HammingThreshold)
	if err != nil {
		s.log.Warn("similarity scan failed; continuing without candidates", "error", err)
		candidates = nil
	}

	if exact != nil {
		return s.duplicateOutcome(fingerprint, exact, candidates), nil
	}
	if s.policy.BlockOnSimilar && len(candidates) > 0 {
		winner, err := s.ledger.GetByAssetID(ctx, nil, candidates[0].AssetID)
		if err == nil {
			return s.duplicateOutcome(fingerprint, winner, candidates), nil
		}
		s.log.Warn("near-match record vanished mid-flight", "assetId", candidates[0].AssetID, "error", err)
	}

	record := &types.AssetRecord{
		AssetID:     uuid.New(),
		Fingerprint: fingerprint,
		ObjectRef:   objectRef,
		Status:      types.StatusRegistered,
		Metadata:    metadata,
	}
	job := types.WatermarkJob{
		AssetID:     record.AssetID,
		ObjectKey:   objectRef,
		Fingerprint: fingerprint,
		EnqueuedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal watermark job: %w", err)
	}
	entry := &types.OutboxEntry{AssetID: record.AssetID, Payload: datatypes.JSON(payload)}

	var winner *types.AssetRecord
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.ledger.InsertIfAbsent(ctx, tx, record)
		if err != nil {
			winner = w
			return err
		}
		return s.outbox.Create(ctx, tx, entry)
	})
	if txErr != nil {
		if stderrors.Is(txErr, errors.ErrLedgerConflict) && winner != nil {
			// Lost the insert race; the stored winner decides.
			return s.duplicateOutcome(fingerprint, winner, candidates), nil
		}
		return nil, txErr
	}

	s.dispatch(ctx, entry, job)
	return &RegistrationOutcome{
		Outcome:    types.StatusRegistered,
		Record:     record,
		Candidates: candidates,
	}, nil
}

// dispatch sends the committed job and marks its outbox row. Failures are
// logged, not returned: the outbox sweep re-sends anything unmarked.
func (s *registrationService) dispatch(ctx context.Context, entry *types.OutboxEntry, job types.WatermarkJob) {
	if err := s.jobs.Send(ctx, job); err != nil {
		s.log.Warn("watermark job send failed; sweep will retry", "assetId", job.AssetID, "error", err)
		return
	}
	if err := s.outbox.MarkDispatched(ctx, nil, entry.ID); err != nil {
		s.log.Warn("outbox mark failed after send", "assetId", job.AssetID, "error", err)
	}
}

func (s *registrationService) duplicateOutcome(fingerprint string, winner *types.AssetRecord, candidates []Candidate) *RegistrationOutcome {
	distance := 0
	if d, err := imaging.Distance(fingerprint, winner.Fingerprint); err == nil {
		distance = d
	}
	return &RegistrationOutcome{
		Outcome:    types.StatusDuplicateDetected,
		Existing:   winner,
		Distance:   distance,
		Candidates: candidates,
	}
}
