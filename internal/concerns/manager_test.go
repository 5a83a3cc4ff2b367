package concerns

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/types"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ponderer.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewManager(s, nil), s
}

func TestManager_CreateAndTouch(t *testing.T) {
	m, _ := newTestManager(t)

	c, err := m.Create("plan birthday party", types.ConcernPersonalInterest, "conversation")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.Salience != types.SalienceActive {
		t.Errorf("Salience = %v, want active", c.Salience)
	}

	touched, err := m.Touch(c.ID, "picked a venue")
	if err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if !touched.LastTouched.After(c.LastTouched) && touched.LastTouched != c.LastTouched {
		t.Error("expected last_touched to advance")
	}
	if len(touched.Context.Updates) != 1 {
		t.Errorf("expected 1 context note, got %d", len(touched.Context.Updates))
	}
}

func TestNextSalience_InclusiveThresholds(t *testing.T) {
	cases := []struct {
		current  types.Salience
		age      time.Duration
		want     types.Salience
		demoted  bool
	}{
		{types.SalienceActive, 7 * 24 * time.Hour, types.SalienceMonitoring, true},
		{types.SalienceActive, 6*24*time.Hour + 23*time.Hour, types.SalienceActive, false},
		{types.SalienceMonitoring, 30 * 24 * time.Hour, types.SalienceBackground, true},
		{types.SalienceBackground, 90 * 24 * time.Hour, types.SalienceDormant, true},
		{types.SalienceDormant, 365 * 24 * time.Hour, types.SalienceDormant, false},
	}
	for _, tc := range cases {
		got, demoted := nextSalience(tc.current, tc.age)
		if got != tc.want || demoted != tc.demoted {
			t.Errorf("nextSalience(%v, %v) = %v, %v; want %v, %v", tc.current, tc.age, got, demoted, tc.want, tc.demoted)
		}
	}
}

func TestManager_RunMaintenanceDemotesStaleActive(t *testing.T) {
	m, s := newTestManager(t)

	c, err := m.Create("watch disk usage", types.ConcernSystemHealth, "system")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	c.LastTouched = time.Now().Add(-8 * 24 * time.Hour)
	if err := s.UpdateConcern(c); err != nil {
		t.Fatalf("UpdateConcern failed: %v", err)
	}

	report, err := m.RunMaintenance(time.Now(), nil)
	if err != nil {
		t.Fatalf("RunMaintenance failed: %v", err)
	}
	if len(report.Demoted) != 1 || report.Demoted[0] != c.ID {
		t.Errorf("Demoted = %v, want [%s]", report.Demoted, c.ID)
	}

	got, err := s.GetConcern(c.ID)
	if err != nil || got == nil || got.Salience != types.SalienceMonitoring {
		t.Errorf("concern salience = %+v, %v, want monitoring", got, err)
	}
}

type alwaysDuplicates struct{}

func (alwaysDuplicates) AreDuplicates(a, b types.Concern) bool { return true }

func TestManager_ConsolidationIsIdempotent(t *testing.T) {
	m, s := newTestManager(t)

	older := time.Now().Add(-48 * time.Hour)
	a, err := m.Create("renovate kitchen", types.ConcernHouseholdAwareness, "conversation")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	a.CreatedAt = older
	a.RelatedMemoryKeys = []string{"kitchen_notes"}
	if err := s.UpdateConcern(a); err != nil {
		t.Fatalf("UpdateConcern failed: %v", err)
	}

	b, err := m.Create("redo the kitchen", types.ConcernHouseholdAwareness, "conversation")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b.RelatedMemoryKeys = []string{"cabinet_quotes"}
	if err := s.UpdateConcern(b); err != nil {
		t.Fatalf("UpdateConcern failed: %v", err)
	}

	first, err := m.consolidate(alwaysDuplicates{})
	if err != nil {
		t.Fatalf("first consolidate failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 merge, got %d", len(first))
	}

	remaining, err := s.ListAllConcerns()
	if err != nil {
		t.Fatalf("ListAllConcerns failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining concern, got %d", len(remaining))
	}
	if len(remaining[0].RelatedMemoryKeys) != 2 {
		t.Errorf("expected union of memory keys, got %v", remaining[0].RelatedMemoryKeys)
	}

	second, err := m.consolidate(alwaysDuplicates{})
	if err != nil {
		t.Fatalf("second consolidate failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("expected idempotent second pass to merge nothing, got %v", second)
	}
}
