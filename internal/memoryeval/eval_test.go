package memoryeval

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ponderer.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEvaluate_PerfectCorrelation(t *testing.T) {
	traces := []ReplayTrace{
		{Query: "a", Expected: 0.1, Predicted: 0.1},
		{Query: "b", Expected: 0.5, Predicted: 0.5},
		{Query: "c", Expected: 0.9, Predicted: 0.9},
	}
	report := Evaluate("kv_v1", 1, traces, time.Now())
	if report.Metrics["correlation"] < 0.99 {
		t.Errorf("correlation = %v, want ~1.0", report.Metrics["correlation"])
	}
	if report.SampleSize != 3 {
		t.Errorf("SampleSize = %d, want 3", report.SampleSize)
	}
}

func TestPromoter_RejectsCandidateFailingGates(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetActiveMemoryDesign(types.MemoryDesignVersion{MemoryDesignID: "kv_v1", MemorySchemaVersion: 1}); err != nil {
		t.Fatalf("SetActiveMemoryDesign failed: %v", err)
	}

	p := NewPromoter()
	candidate := types.MemoryEvalReport{
		DesignID:  "fts_v2",
		SchemaVer: 2,
		Metrics:   map[string]float64{"correlation": 0.0, "mean_score": 0.0},
	}
	decision, err := p.Promote(s, candidate, time.Now())
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if decision.Approved {
		t.Error("expected candidate failing gates to not be approved")
	}
	if decision.RollbackDesignID != "kv_v1" {
		t.Errorf("RollbackDesignID = %q, want kv_v1", decision.RollbackDesignID)
	}

	active, ok, err := s.ActiveMemoryDesign()
	if err != nil || !ok || active.MemoryDesignID != "kv_v1" {
		t.Errorf("active design changed despite rejected promotion: %+v, %v, %v", active, ok, err)
	}
}

func TestPromoter_ApprovesCandidateClearingGates(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetActiveMemoryDesign(types.MemoryDesignVersion{MemoryDesignID: "kv_v1", MemorySchemaVersion: 1}); err != nil {
		t.Fatalf("SetActiveMemoryDesign failed: %v", err)
	}

	p := NewPromoter()
	candidate := types.MemoryEvalReport{
		DesignID:  "fts_v2",
		SchemaVer: 2,
		Metrics:   map[string]float64{"correlation": 0.9, "mean_score": 0.9},
	}
	decision, err := p.Promote(s, candidate, time.Now())
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if !decision.Approved {
		t.Fatalf("expected candidate clearing gates to be approved, reason: %s", decision.Reason)
	}
	if decision.RollbackDesignID != "kv_v1" || decision.RollbackSchemaVersion != 1 {
		t.Errorf("rollback target = %s/%d, want kv_v1/1", decision.RollbackDesignID, decision.RollbackSchemaVersion)
	}

	active, ok, err := s.ActiveMemoryDesign()
	if err != nil || !ok || active.MemoryDesignID != "fts_v2" {
		t.Fatalf("expected active design to switch to fts_v2, got %+v, %v, %v", active, ok, err)
	}

	restored, err := Rollback(s)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if restored.MemoryDesignID != "kv_v1" {
		t.Errorf("Rollback restored %q, want kv_v1", restored.MemoryDesignID)
	}
}
