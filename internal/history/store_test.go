package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"petscan/internal/biometry"
	"petscan/internal/frame"
	"petscan/internal/history"
	"petscan/internal/scan"
	"petscan/internal/testsupport"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func attemptAt(id string, submitted time.Time, outcome scan.Outcome) scan.Attempt {
	return scan.Attempt{
		ID:          id,
		Generation:  2,
		SessionID:   "session-1",
		Mode:        scan.ModeLiveCamera,
		Source:      scan.SourceTick,
		Image:       frame.Image{Data: make([]byte, 128), MIME: frame.MIMEJPEG},
		SubmittedAt: submitted,
		ResolvedAt:  submitted.Add(350 * time.Millisecond),
		Outcome:     outcome,
	}
}

func TestRecordAndListAttempts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	matched := scan.Matched{
		Candidates: []biometry.Candidate{{PetID: 7, Name: "Rex", Similarity: 0.91}, {PetID: 8, Name: "Bob", Similarity: 0.77}},
		Message:    "found 2 pets",
	}
	attempts := []scan.Attempt{
		attemptAt("a1", base, scan.Empty{Message: "no match"}),
		attemptAt("a2", base.Add(500*time.Millisecond), scan.Failed{Err: errors.New("registry down")}),
		attemptAt("a3", base.Add(time.Second), matched),
	}
	for _, att := range attempts {
		if err := store.Record(ctx, att); err != nil {
			t.Fatalf("record %s: %v", att.ID, err)
		}
	}

	entries, err := store.List(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != "a3" || entries[2].ID != "a1" {
		t.Fatalf("expected newest first, got %s..%s", entries[0].ID, entries[2].ID)
	}

	best := entries[0]
	if best.Outcome != "matched" || best.CandidateCount != 2 || best.BestPetID != 7 || best.BestPetName != "Rex" {
		t.Fatalf("unexpected matched entry: %+v", best)
	}
	if best.BestSimilarity != 0.91 || best.Message != "found 2 pets" {
		t.Fatalf("unexpected matched detail: %+v", best)
	}
	if best.Latency != 350*time.Millisecond {
		t.Fatalf("expected 350ms latency, got %s", best.Latency)
	}
	if best.ImageBytes != 128 {
		t.Fatalf("expected image size recorded, got %d", best.ImageBytes)
	}
	if !best.SubmittedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected submitted at %s", best.SubmittedAt)
	}
	if entries[1].ErrorMessage != "registry down" {
		t.Fatalf("expected failure message, got %+v", entries[1])
	}
}

func TestListFiltersAndLimits(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d"} {
		att := attemptAt(id, base.Add(time.Duration(i)*time.Second), scan.Empty{})
		if id == "d" {
			att.SessionID = "session-2"
			att.Abandoned = true
		}
		if err := store.Record(ctx, att); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	limited, err := store.List(ctx, history.Filter{Limit: 2})
	if err != nil || len(limited) != 2 {
		t.Fatalf("expected 2 limited entries, got %d (%v)", len(limited), err)
	}

	session, err := store.List(ctx, history.Filter{SessionID: "session-2"})
	if err != nil || len(session) != 1 || session[0].Outcome != "abandoned" {
		t.Fatalf("unexpected session filter result: %+v (%v)", session, err)
	}

	empty, err := store.List(ctx, history.Filter{Outcome: "empty"})
	if err != nil || len(empty) != 3 {
		t.Fatalf("expected 3 empty entries, got %d (%v)", len(empty), err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["empty"] != 3 || stats["abandoned"] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestRecordRejectsMissingID(t *testing.T) {
	store := openStore(t)
	if err := store.Record(context.Background(), scan.Attempt{}); err == nil {
		t.Fatal("expected error for attempt without id")
	}
}

func TestRecordReplacesSameAttempt(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	att := attemptAt("a1", time.Now(), scan.Empty{})
	if err := store.Record(ctx, att); err != nil {
		t.Fatalf("record: %v", err)
	}
	att.Abandoned = true
	if err := store.Record(ctx, att); err != nil {
		t.Fatalf("record again: %v", err)
	}
	entries, _ := store.List(ctx, history.Filter{})
	if len(entries) != 1 || entries[0].Outcome != "abandoned" {
		t.Fatalf("expected single abandoned entry, got %+v", entries)
	}
}

func TestPruneRemovesOldAttempts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now()

	_ = store.Record(ctx, attemptAt("old", now.Add(-48*time.Hour), scan.Empty{}))
	_ = store.Record(ctx, attemptAt("new", now, scan.Empty{}))

	removed, err := store.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned row, got %d", removed)
	}
	entries, _ := store.List(ctx, history.Filter{})
	if len(entries) != 1 || entries[0].ID != "new" {
		t.Fatalf("unexpected remaining entries: %+v", entries)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Record(context.Background(), attemptAt("a1", time.Now(), scan.Empty{})); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = store.Close()

	reopened, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.List(context.Background(), history.Filter{})
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected persisted entry, got %d (%v)", len(entries), err)
	}
}
