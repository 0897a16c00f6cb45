package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/platform/storage"
)

// allowedUploadExt mirrors the formats the fingerprint decoder accepts.
var allowedUploadExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
}

// InitiateUploadResult hands the client a short-lived, token-authorized
// PUT target, standing in for a presigned URL.
type InitiateUploadResult struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
	UploadID  string `json:"uploadId"`
	ExpiresIn int    `json:"expiresIn"`
}

type UploadService interface {
	Initiate(ctx context.Context, filename string) (*InitiateUploadResult, error)
	// Store authorizes the PUT by token and persists the body at the
	// session's object key.
	Store(ctx context.Context, uploadID, token, contentType string, r io.Reader) (*UploadSession, error)
	Status(ctx context.Context, uploadID string) (*UploadSession, error)
	// Complete loads the uploaded object and runs registration. objectKey
	// is the fallback when the session already expired.
	Complete(ctx context.Context, uploadID, objectKey string, extra map[string]any) (*RegistrationOutcome, error)
}

type uploadService struct {
	log          *logger.Logger
	store        storage.BlobStore
	sessions     SessionTracker
	registration RegistrationService
	secret       []byte
	tokenTTL     time.Duration
	baseURL      string
	maxBytes     int64
}

type uploadClaims struct {
	jwt.RegisteredClaims
	ObjectKey string `json:"key"`
}

func NewUploadService(
	baseLog *logger.Logger,
	store storage.BlobStore,
	sessions SessionTracker,
	registration RegistrationService,
) (UploadService, error) {
	secret := envutil.String("UPLOAD_TOKEN_SECRET", "")
	if secret == "" {
		return nil, fmt.Errorf("missing UPLOAD_TOKEN_SECRET")
	}
	return &uploadService{
		log:          baseLog.With("service", "UploadService"),
		store:        store,
		sessions:     sessions,
		registration: registration,
		secret:       []byte(secret),
		tokenTTL:     envutil.Duration("UPLOAD_TOKEN_TTL", 600*time.Second),
		baseURL:      strings.TrimRight(envutil.String("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		maxBytes:     envutil.Int64("MAX_UPLOAD_BYTES", 100<<20),
	}, nil
}

func (s *uploadService) Initiate(ctx context.Context, filename string) (*InitiateUploadResult, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: filename required", errors.ErrInvalidArgument)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedUploadExt[ext] {
		return nil, fmt.Errorf("%w: file extension %q not allowed", errors.ErrInvalidArgument, ext)
	}

	uploadID := uuid.NewString()
	objectKey := fmt.Sprintf("uploads/%s/%s", uploadID, name)
	token, err := s.mintToken(uploadID, objectKey)
	if err != nil {
		return nil, fmt.Errorf("mint upload token: %w", err)
	}

	now := time.Now().UTC()
	session := &UploadSession{
		UploadID:  uploadID,
		ObjectKey: objectKey,
		Filename:  name,
		Status:    UploadStatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	return &InitiateUploadResult{
		UploadURL: fmt.Sprintf("%s/uploads/file/%s?token=%s", s.baseURL, uploadID, url.QueryEscape(token)),
		ObjectKey: objectKey,
		UploadID:  uploadID,
		ExpiresIn: int(s.tokenTTL.Seconds()),
	}, nil
}

func (s *uploadService) Store(ctx context.Context, uploadID, token, contentType string, r io.Reader) (*UploadSession, error) {
	session, err := s.sessions.Get(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	objectKey, err := s.verifyToken(token, uploadID)
	if err != nil {
		return nil, err
	}
	if objectKey != session.ObjectKey {
		return nil, fmt.Errorf("token key mismatch: %w", errors.ErrUnauthorized)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", errors.ErrInvalidArgument, s.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", errors.ErrInvalidArgument)
	}

	if err := s.store.Put(ctx, session.ObjectKey, bytes.NewReader(data), contentType); err != nil {
		return nil, err
	}

	session.Status = UploadStatusUploaded
	session.SizeBytes = int64(len(data))
	session.UpdatedAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *uploadService) Status(ctx context.Context, uploadID string) (*UploadSession, error) {
	if strings.TrimSpace(uploadID) == "" {
		return nil, fmt.Errorf("%w: uploadId required", errors.ErrInvalidArgument)
	}
	return s.sessions.Get(ctx, uploadID)
}

func (s *uploadService) Complete(ctx context.Context, uploadID, objectKey string, extra map[string]any) (*RegistrationOutcome, error) {
	session, err := s.sessions.Get(ctx, uploadID)
	switch {
	case err == nil:
		objectKey = session.ObjectKey
	case objectKey == "":
		// No session and no explicit key leaves nothing to register.
		return nil, err
	}

	raw, err := storage.ReadAll(ctx, s.store, objectKey)
	if err != nil {
		return nil, err
	}

	if extra == nil {
		extra = map[string]any{}
	}
	if session != nil {
		extra["filename"] = session.Filename
	}
	if uploadID != "" {
		extra["uploadId"] = uploadID
	}

	outcome, err := s.registration.RegisterImage(ctx, raw, objectKey, extra)
	if err != nil {
		return nil, err
	}

	if session != nil {
		session.Status = UploadStatusCompleted
		session.UpdatedAt = time.Now().UTC()
		if err := s.sessions.Save(ctx, session); err != nil {
			s.log.Warn("session completion mark failed", "uploadId", uploadID, "error", err)
		}
	}
	return outcome, nil
}

func (s *uploadService) mintToken(uploadID, objectKey string) (string, error) {
	claims := uploadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uploadID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ObjectKey: objectKey,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *uploadService) verifyToken(tokenString, uploadID string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("missing token: %w", errors.ErrUnauthorized)
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &uploadClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", errors.ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(*uploadClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid token: %w", errors.ErrUnauthorized)
	}
	if claims.Subject != uploadID {
		return "", fmt.Errorf("token upload mismatch: %w", errors.ErrUnauthorized)
	}
	return claims.ObjectKey, nil
}
