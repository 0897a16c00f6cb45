package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/platform/envutil"
	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
)

// Upload session statuses.
const (
	UploadStatusInitiated = "initiated"
	UploadStatusUploaded  = "uploaded"
	UploadStatusCompleted = "completed"
)

// UploadSession tracks one browser upload from initiate to complete.
// Sessions are ephemeral; the ledger record is the durable outcome.
type UploadSession struct {
	UploadID  string    `json:"uploadId"`
	ObjectKey string    `json:"objectKey"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	SizeBytes int64     `json:"sizeBytes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SessionTracker interface {
	Save(ctx context.Context, session *UploadSession) error
	// Get returns errors.ErrNotFound for unknown or expired sessions.
	Get(ctx context.Context, uploadID string) (*UploadSession, error)
}

// ---- redis tracker ----

type redisSessionTracker struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisSessionTracker keeps sessions under upload:{id} with a TTL
// (UPLOAD_SESSION_TTL, default 24h).
func NewRedisSessionTracker(baseLog *logger.Logger, rdb *goredis.Client) (SessionTracker, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisSessionTracker{
		log: baseLog.With("service", "SessionTracker"),
		rdb: rdb,
		ttl: envutil.Duration("UPLOAD_SESSION_TTL", 24*time.Hour),
	}, nil
}

func sessionKey(uploadID string) string { return "upload:" + uploadID }

func (t *redisSessionTracker) Save(ctx context.Context, session *UploadSession) error {
	if session == nil || session.UploadID == "" {
		return fmt.Errorf("%w: session uploadId required", errors.ErrInvalidArgument)
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := t.rdb.Set(ctx, sessionKey(session.UploadID), raw, t.ttl).Err(); err != nil {
		return errors.Transient("session save", err)
	}
	return nil
}

func (t *redisSessionTracker) Get(ctx context.Context, uploadID string) (*UploadSession, error) {
	raw, err := t.rdb.Get(ctx, sessionKey(uploadID)).Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("upload session %s: %w", uploadID, errors.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Transient("session get", err)
	}
	var session UploadSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// ---- memory tracker ----

// MemorySessionTracker backs tests and broker-less local runs.
type MemorySessionTracker struct {
	mu       sync.RWMutex
	sessions map[string]UploadSession
}

func NewMemorySessionTracker() *MemorySessionTracker {
	return &MemorySessionTracker{sessions: make(map[string]UploadSession)}
}

func (t *MemorySessionTracker) Save(_ context.Context, session *UploadSession) error {
	if session == nil || session.UploadID == "" {
		return fmt.Errorf("%w: session uploadId required", errors.ErrInvalidArgument)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[session.UploadID] = *session
	return nil
}

func (t *MemorySessionTracker) Get(_ context.Context, uploadID string) (*UploadSession, error) {
	t.mu.RLock()
	session, ok := t.sessions[uploadID]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("upload session %s: %w", uploadID, errors.ErrNotFound)
	}
	out := session
	return &out, nil
}
