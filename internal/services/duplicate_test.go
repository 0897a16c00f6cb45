package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/hatchmark-backend/internal/types"
)

func seedFingerprint(t *testing.T, env *testEnv, fingerprint string) uuid.UUID {
	t.Helper()
	record := &types.AssetRecord{
		AssetID:     uuid.New(),
		Fingerprint: fingerprint,
		ObjectRef:   "uploads/seed/" + fingerprint[:8] + ".png",
		Status:      types.StatusRegistered,
	}
	if _, err := env.ledger.InsertIfAbsent(context.Background(), nil, record); err != nil {
		t.Fatalf("seed %q: %v", fingerprint, err)
	}
	return record.AssetID
}

func TestFindExact(t *testing.T) {
	env := newTestEnv(t, RegistrationPolicy{HammingThreshold: 5})
	ctx := context.Background()

	fp := hexFingerprint("ab")
	seeded := seedFingerprint(t, env, fp)

	found, err := env.detector.FindExact(ctx, fp)
	if err != nil {
		t.Fatalf("find exact: %v", err)
	}
	if found == nil || found.AssetID != seeded {
		t.Fatalf("found = %+v, want asset %s", found, seeded)
	}

	missing, err := env.detector.FindExact(ctx, hexFingerprint("cd"))
	if err != nil {
		t.Fatalf("find exact miss: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown fingerprint, got %+v", missing)
	}
}

func TestFindSimilarOrdersByDistance(t *testing.T) {
	env := newTestEnv(t, RegistrationPolicy{HammingThreshold: 5})
	ctx := context.Background()
	probe := hexFingerprint("")

	// Distances from the all-zero probe: 0, 2, 4 and 7 set bits.
	seedFingerprint(t, env, hexFingerprint(""))
	seedFingerprint(t, env, hexFingerprint("3"))
	seedFingerprint(t, env, hexFingerprint("f"))
	seedFingerprint(t, env, hexFingerprint("7f"))

	candidates, err := env.detector.FindSimilar(ctx, probe, 5)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates, want 3 (distance 7 is past the threshold)", len(candidates))
	}
	wantDistances := []int{0, 2, 4}
	for i, c := range candidates {
		if c.Distance != wantDistances[i] {
			t.Fatalf("candidate %d distance = %d, want %d", i, c.Distance, wantDistances[i])
		}
		wantSim := 1.0 - float64(wantDistances[i])/256.0
		if c.Similarity != wantSim {
			t.Fatalf("candidate %d similarity = %v, want %v", i, c.Similarity, wantSim)
		}
	}
}

func TestFindSimilarBreaksTiesByAssetID(t *testing.T) {
	env := newTestEnv(t, RegistrationPolicy{HammingThreshold: 5})
	ctx := context.Background()

	// "3" and "c" as the low nibble are both two bits from zero.
	a := seedFingerprint(t, env, hexFingerprint("3"))
	b := seedFingerprint(t, env, hexFingerprint("c"))

	candidates, err := env.detector.FindSimilar(ctx, hexFingerprint(""), 5)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	first, second := a, b
	if b.String() < a.String() {
		first, second = b, a
	}
	if candidates[0].AssetID != first || candidates[1].AssetID != second {
		t.Fatalf("tie order = [%s %s], want [%s %s]",
			candidates[0].AssetID, candidates[1].AssetID, first, second)
	}
}

func TestFindSimilarSkipsMalformedRows(t *testing.T) {
	env := newTestEnv(t, RegistrationPolicy{HammingThreshold: 5})
	ctx := context.Background()

	// A row that predates fingerprint validation. The scan must step over
	// it rather than abort the whole comparison.
	seedFingerprint(t, env, strings.Repeat("zz", 32))
	good := seedFingerprint(t, env, hexFingerprint("1"))

	candidates, err := env.detector.FindSimilar(ctx, hexFingerprint(""), 5)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(candidates) != 1 || candidates[0].AssetID != good {
		t.Fatalf("candidates = %+v, want only %s", candidates, good)
	}
}

func TestFindSimilarEmptyLedger(t *testing.T) {
	env := newTestEnv(t, RegistrationPolicy{HammingThreshold: 5})
	candidates, err := env.detector.FindSimilar(context.Background(), hexFingerprint("ff"), 5)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("got %d candidates from empty ledger", len(candidates))
	}
}
