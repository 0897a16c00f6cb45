package services

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/url"
	"strings"
	"testing"

	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

func newUploadEnv(t *testing.T) (*testEnv, UploadService) {
	t.Helper()
	t.Setenv("UPLOAD_TOKEN_SECRET", "test-secret")
	t.Setenv("PUBLIC_BASE_URL", "http://localhost:8080")
	env := newTestEnv(t, RegistrationPolicy{})
	svc, err := NewUploadService(env.log, env.store, NewMemorySessionTracker(), env.registration)
	if err != nil {
		t.Fatalf("new upload service: %v", err)
	}
	return env, svc
}

func tokenFromURL(t *testing.T, uploadURL string) string {
	t.Helper()
	u, err := url.Parse(uploadURL)
	if err != nil {
		t.Fatalf("parse upload url: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("upload url %q has no token", uploadURL)
	}
	return token
}

func TestInitiateUpload(t *testing.T) {
	_, svc := newUploadEnv(t)

	res, err := svc.Initiate(context.Background(), "cat.png")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if res.UploadID == "" {
		t.Fatalf("no uploadId")
	}
	if !strings.HasPrefix(res.ObjectKey, "uploads/"+res.UploadID+"/") || !strings.HasSuffix(res.ObjectKey, "/cat.png") {
		t.Fatalf("objectKey = %q", res.ObjectKey)
	}
	if !strings.HasPrefix(res.UploadURL, "http://localhost:8080/uploads/file/"+res.UploadID+"?token=") {
		t.Fatalf("uploadUrl = %q", res.UploadURL)
	}
	if res.ExpiresIn != 600 {
		t.Fatalf("expiresIn = %d, want 600", res.ExpiresIn)
	}

	session, err := svc.Status(context.Background(), res.UploadID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if session.Status != UploadStatusInitiated {
		t.Fatalf("session status = %q", session.Status)
	}
	if session.Filename != "cat.png" {
		t.Fatalf("session filename = %q", session.Filename)
	}
}

func TestInitiateRejectsBadFilenames(t *testing.T) {
	_, svc := newUploadEnv(t)
	ctx := context.Background()

	for _, name := range []string{"", "   ", "malware.exe", "archive.zip", "noext"} {
		if _, err := svc.Initiate(ctx, name); !stderrors.Is(err, errors.ErrInvalidArgument) {
			t.Fatalf("Initiate(%q) err = %v, want ErrInvalidArgument", name, err)
		}
	}

	// Path segments must not leak into the object key.
	res, err := svc.Initiate(ctx, "../../etc/passwd.png")
	if err != nil {
		t.Fatalf("initiate with path: %v", err)
	}
	if strings.Contains(res.ObjectKey, "..") {
		t.Fatalf("objectKey kept traversal: %q", res.ObjectKey)
	}
	if !strings.HasSuffix(res.ObjectKey, "/passwd.png") {
		t.Fatalf("objectKey = %q", res.ObjectKey)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	env, svc := newUploadEnv(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, "cat.png")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	raw := gradientPNG(t)

	session, err := svc.Store(ctx, res.UploadID, tokenFromURL(t, res.UploadURL), "image/png", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if session.Status != UploadStatusUploaded {
		t.Fatalf("session status = %q", session.Status)
	}
	if session.SizeBytes != int64(len(raw)) {
		t.Fatalf("sizeBytes = %d, want %d", session.SizeBytes, len(raw))
	}

	ok, err := env.store.Exists(ctx, res.ObjectKey)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Fatalf("object not stored at %q", res.ObjectKey)
	}
}

func TestStoreRejectsBadTokens(t *testing.T) {
	_, svc := newUploadEnv(t)
	ctx := context.Background()
	raw := gradientPNG(t)

	first, err := svc.Initiate(ctx, "a.png")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	second, err := svc.Initiate(ctx, "b.png")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if _, err := svc.Store(ctx, first.UploadID, "", "image/png", bytes.NewReader(raw)); !stderrors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("empty token err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Store(ctx, first.UploadID, "not-a-jwt", "image/png", bytes.NewReader(raw)); !stderrors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("garbage token err = %v, want ErrUnauthorized", err)
	}
	// A valid token for a different upload must not authorize this one.
	if _, err := svc.Store(ctx, first.UploadID, tokenFromURL(t, second.UploadURL), "image/png", bytes.NewReader(raw)); !stderrors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("cross-upload token err = %v, want ErrUnauthorized", err)
	}
}

func TestStoreEnforcesBodyLimits(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "16")
	_, svc := newUploadEnv(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, "cat.png")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	token := tokenFromURL(t, res.UploadURL)

	oversized := bytes.Repeat([]byte("x"), 17)
	if _, err := svc.Store(ctx, res.UploadID, token, "image/png", bytes.NewReader(oversized)); !stderrors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("oversized err = %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.Store(ctx, res.UploadID, token, "image/png", bytes.NewReader(nil)); !stderrors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("empty err = %v, want ErrInvalidArgument", err)
	}
}

func TestCompleteRegistersUpload(t *testing.T) {
	env, svc := newUploadEnv(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, "cat.png")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.Store(ctx, res.UploadID, tokenFromURL(t, res.UploadURL), "image/png", bytes.NewReader(gradientPNG(t))); err != nil {
		t.Fatalf("store: %v", err)
	}

	outcome, err := svc.Complete(ctx, res.UploadID, "", map[string]any{"creator": "ada"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if outcome.Outcome != types.StatusRegistered {
		t.Fatalf("outcome = %q", outcome.Outcome)
	}
	if outcome.Record.ObjectRef != res.ObjectKey {
		t.Fatalf("record objectRef = %q, want %q", outcome.Record.ObjectRef, res.ObjectKey)
	}

	session, err := svc.Status(ctx, res.UploadID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if session.Status != UploadStatusCompleted {
		t.Fatalf("session status = %q", session.Status)
	}
	if env.queue.Len() != 1 {
		t.Fatalf("queued jobs = %d, want 1", env.queue.Len())
	}
}

func TestCompleteDetectsDuplicateAcrossUploads(t *testing.T) {
	_, svc := newUploadEnv(t)
	ctx := context.Background()
	raw := gradientPNG(t)

	run := func(name string) *RegistrationOutcome {
		res, err := svc.Initiate(ctx, name)
		if err != nil {
			t.Fatalf("initiate %s: %v", name, err)
		}
		if _, err := svc.Store(ctx, res.UploadID, tokenFromURL(t, res.UploadURL), "image/png", bytes.NewReader(raw)); err != nil {
			t.Fatalf("store %s: %v", name, err)
		}
		outcome, err := svc.Complete(ctx, res.UploadID, "", nil)
		if err != nil {
			t.Fatalf("complete %s: %v", name, err)
		}
		return outcome
	}

	first := run("a.png")
	second := run("b.png")
	if first.Duplicate() {
		t.Fatalf("first upload reported duplicate")
	}
	if !second.Duplicate() {
		t.Fatalf("identical second upload not reported duplicate")
	}
	if second.Existing.AssetID != first.Record.AssetID {
		t.Fatalf("duplicate resolved to %s, want %s", second.Existing.AssetID, first.Record.AssetID)
	}
}

func TestCompleteWithoutSession(t *testing.T) {
	env, svc := newUploadEnv(t)
	ctx := context.Background()

	// Session expired but the object survived: explicit key still works.
	if err := env.store.Put(ctx, "uploads/orphan/cat.png", bytes.NewReader(gradientPNG(t)), "image/png"); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	outcome, err := svc.Complete(ctx, "expired-session", "uploads/orphan/cat.png", nil)
	if err != nil {
		t.Fatalf("complete with key: %v", err)
	}
	if outcome.Outcome != types.StatusRegistered {
		t.Fatalf("outcome = %q", outcome.Outcome)
	}

	if _, err := svc.Complete(ctx, "also-expired", "", nil); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("no session, no key err = %v, want ErrNotFound", err)
	}
}
