package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MLTQ/Ponderer/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ponderer.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_OpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)
	if _, ok, err := s.GetState("nope"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
}

func TestStore_KVRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutState("current_system_prompt", "be kind"); err != nil {
		t.Fatalf("PutState failed: %v", err)
	}
	v, ok, err := s.GetState("current_system_prompt")
	if err != nil || !ok || v != "be kind" {
		t.Fatalf("GetState = %q, %v, %v", v, ok, err)
	}

	if err := s.PutState("poll_interval_seconds", 30); err != nil {
		t.Fatalf("PutState int failed: %v", err)
	}
	if n := s.GetStateInt("poll_interval_seconds", 99); n != 30 {
		t.Errorf("GetStateInt = %d, want 30", n)
	}
	if n := s.GetStateInt("missing_key", 99); n != 99 {
		t.Errorf("GetStateInt fallback = %d, want 99", n)
	}

	if err := s.DeleteState("current_system_prompt"); err != nil {
		t.Fatalf("DeleteState failed: %v", err)
	}
	if _, ok, _ := s.GetState("current_system_prompt"); ok {
		t.Error("expected key to be deleted")
	}
}

func TestStore_ConcernLifecycle(t *testing.T) {
	s := newTestStore(t)

	c := types.Concern{
		ID:          "c1",
		CreatedAt:   time.Now(),
		LastTouched: time.Now(),
		Summary:     "renovate kitchen",
		ConcernType: types.ConcernHouseholdAwareness,
		Salience:    types.SalienceActive,
		Context:     types.ConcernContext{Origin: "conversation"},
	}
	if err := s.CreateConcern(c); err != nil {
		t.Fatalf("CreateConcern failed: %v", err)
	}

	got, err := s.GetConcern("c1")
	if err != nil || got == nil {
		t.Fatalf("GetConcern = %v, %v", got, err)
	}
	if got.Salience != types.SalienceActive {
		t.Errorf("Salience = %v, want active", got.Salience)
	}

	got.Salience = types.SalienceMonitoring
	got.LastTouched = time.Now()
	if err := s.UpdateConcern(*got); err != nil {
		t.Fatalf("UpdateConcern failed: %v", err)
	}

	active, err := s.ListActiveConcerns()
	if err != nil {
		t.Fatalf("ListActiveConcerns failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected 0 active concerns after demotion, got %d", len(active))
	}

	if err := s.DeleteConcern("c1"); err != nil {
		t.Fatalf("DeleteConcern failed: %v", err)
	}
	if got, _ := s.GetConcern("c1"); got != nil {
		t.Error("expected concern to be gone after delete")
	}
}

func TestStore_JournalAppendOnly(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.LastJournalEntryTime(); err != nil || ok {
		t.Fatalf("expected empty journal, got ok=%v err=%v", ok, err)
	}

	e := types.JournalEntry{
		ID:        "j1",
		Timestamp: time.Now(),
		EntryType: types.EntryObservation,
		Content:   "quiet evening",
		Context:   types.JournalContext{Trigger: "ambient_tick"},
	}
	if err := s.AppendJournalEntry(e); err != nil {
		t.Fatalf("AppendJournalEntry failed: %v", err)
	}

	recent, err := s.RecentJournalEntries(10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("RecentJournalEntries = %v, %v", recent, err)
	}

	if _, ok, err := s.LastJournalEntryTime(); err != nil || !ok {
		t.Fatalf("expected non-empty journal, got ok=%v err=%v", ok, err)
	}
}

func TestStore_OrientationSnapshotOrdering(t *testing.T) {
	s := newTestStore(t)

	base := time.Now()
	for i := 0; i < 3; i++ {
		o := types.Orientation{
			UserState:         types.UserDeepWork,
			UserStateConf:     0.8,
			Disposition:       types.DispositionIdle,
			DispositionReason: "nothing notable",
			GeneratedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := s.InsertOrientationSnapshot(o); err != nil {
			t.Fatalf("InsertOrientationSnapshot failed: %v", err)
		}
	}

	recent, err := s.RecentOrientationSnapshots(2)
	if err != nil {
		t.Fatalf("RecentOrientationSnapshots failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(recent))
	}
	if !recent[0].GeneratedAt.After(recent[1].GeneratedAt) {
		t.Error("expected snapshots newest-first")
	}
}

func TestStore_PendingThoughtLifecycle(t *testing.T) {
	s := newTestStore(t)

	p := types.PendingThought{
		ID:        "t1",
		Content:   "ask about the trip",
		Priority:  0.6,
		CreatedAt: time.Now(),
	}
	if err := s.EnqueuePendingThought(p); err != nil {
		t.Fatalf("EnqueuePendingThought failed: %v", err)
	}

	unsurfaced, err := s.UnsurfacedPendingThoughts()
	if err != nil || len(unsurfaced) != 1 {
		t.Fatalf("UnsurfacedPendingThoughts = %v, %v", unsurfaced, err)
	}

	if err := s.MarkThoughtSurfaced("t1", time.Now()); err != nil {
		t.Fatalf("MarkThoughtSurfaced failed: %v", err)
	}
	unsurfaced, err = s.UnsurfacedPendingThoughts()
	if err != nil || len(unsurfaced) != 0 {
		t.Fatalf("expected 0 unsurfaced after surfacing, got %v, %v", unsurfaced, err)
	}
}

func TestStore_MemoryDesignPromotion(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.ActiveMemoryDesign(); err != nil || ok {
		t.Fatalf("expected no active design initially, got ok=%v err=%v", ok, err)
	}

	v := types.MemoryDesignVersion{MemoryDesignID: "kv_v1", MemorySchemaVersion: 1}
	if err := s.SetActiveMemoryDesign(v); err != nil {
		t.Fatalf("SetActiveMemoryDesign failed: %v", err)
	}
	got, ok, err := s.ActiveMemoryDesign()
	if err != nil || !ok || got != v {
		t.Fatalf("ActiveMemoryDesign = %+v, %v, %v", got, ok, err)
	}

	decision := types.PromotionDecision{
		FromDesignID:          "kv_v1",
		FromSchemaVersion:     1,
		ToDesignID:            "fts_v2",
		ToSchemaVersion:       2,
		Approved:              true,
		RollbackDesignID:      "kv_v1",
		RollbackSchemaVersion: 1,
		DecidedAt:             time.Now(),
	}
	if _, err := s.RecordPromotionDecision(decision); err != nil {
		t.Fatalf("RecordPromotionDecision failed: %v", err)
	}
	last, ok, err := s.LastPromotionDecision()
	if err != nil || !ok || last.RollbackDesignID == "" {
		t.Fatalf("LastPromotionDecision = %+v, %v, %v", last, ok, err)
	}
}

func TestStore_PromoteActiveMemoryDesignAtomic(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetActiveMemoryDesign(types.MemoryDesignVersion{MemoryDesignID: "kv_v1", MemorySchemaVersion: 1}); err != nil {
		t.Fatalf("SetActiveMemoryDesign failed: %v", err)
	}

	decision := types.PromotionDecision{
		FromDesignID:          "kv_v1",
		FromSchemaVersion:     1,
		ToDesignID:            "fts_v2",
		ToSchemaVersion:       2,
		Approved:              true,
		Reason:                "candidate cleared gates and margin",
		RollbackDesignID:      "kv_v1",
		RollbackSchemaVersion: 1,
		DecidedAt:             time.Now(),
	}
	id, err := s.PromoteActiveMemoryDesign(types.MemoryDesignVersion{MemoryDesignID: "fts_v2", MemorySchemaVersion: 2}, decision)
	if err != nil {
		t.Fatalf("PromoteActiveMemoryDesign failed: %v", err)
	}
	if id == 0 {
		t.Error("expected a non-zero promotion decision id")
	}

	active, ok, err := s.ActiveMemoryDesign()
	if err != nil || !ok || active.MemoryDesignID != "fts_v2" || active.MemorySchemaVersion != 2 {
		t.Fatalf("ActiveMemoryDesign = %+v, %v, %v, want fts_v2/2", active, ok, err)
	}

	last, ok, err := s.LastPromotionDecision()
	if err != nil || !ok || last.ToDesignID != "fts_v2" || last.RollbackDesignID != "kv_v1" {
		t.Fatalf("LastPromotionDecision = %+v, %v, %v", last, ok, err)
	}
}

func TestStore_CharacterCardSingleton(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.GetCharacterCard(); err != nil || ok {
		t.Fatalf("expected no character card initially, got ok=%v err=%v", ok, err)
	}
	if err := s.PutCharacterCard("v1"); err != nil {
		t.Fatalf("PutCharacterCard failed: %v", err)
	}
	if err := s.PutCharacterCard("v2"); err != nil {
		t.Fatalf("PutCharacterCard replace failed: %v", err)
	}
	got, ok, err := s.GetCharacterCard()
	if err != nil || !ok || got != "v2" {
		t.Fatalf("GetCharacterCard = %q, %v, %v", got, ok, err)
	}
}

func TestStore_PrivateMessageAnswer(t *testing.T) {
	s := newTestStore(t)

	id, err := s.EnqueuePrivateMessage(types.PrivateMessage{
		ChannelID: "cli",
		Author:    "user",
		Content:   "how's it going",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("EnqueuePrivateMessage failed: %v", err)
	}

	pending, err := s.UnprocessedPrivateMessages()
	if err != nil || len(pending) != 1 {
		t.Fatalf("UnprocessedPrivateMessages = %v, %v", pending, err)
	}

	if err := s.AnswerPrivateMessage(id, "doing fine"); err != nil {
		t.Fatalf("AnswerPrivateMessage failed: %v", err)
	}
	pending, err = s.UnprocessedPrivateMessages()
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected 0 pending after answer, got %v, %v", pending, err)
	}
}
