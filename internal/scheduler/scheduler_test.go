package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MLTQ/Ponderer/internal/concerns"
	"github.com/MLTQ/Ponderer/internal/config"
	"github.com/MLTQ/Ponderer/internal/events"
	"github.com/MLTQ/Ponderer/internal/journal"
	"github.com/MLTQ/Ponderer/internal/orientation"
	"github.com/MLTQ/Ponderer/internal/presence"
	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/types"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func newTestScheduler(t *testing.T, gen *fakeGenerator) (*Scheduler, *store.Store, *events.Broadcaster) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ponderer.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := config.Defaults()
	bcast := events.New()
	sched := New(Deps{
		Store:       s,
		Config:      cfg,
		Presence:    presence.New(),
		Orientation: orientation.NewEngine(gen),
		Journal:     journal.NewEngine(gen),
		Concerns:    concerns.NewManager(s, nil),
		Memory:      nil,
		Gate:        nil,
		Broadcaster: bcast,
		Budget:      NewEngagedBudget(1_000_000),
		Generator:   gen,
	})
	return sched, s, bcast
}

func TestPacingFor_AllUserStates(t *testing.T) {
	cases := []struct {
		state            types.UserState
		sinceInteraction time.Duration
		want             time.Duration
	}{
		{types.UserDeepWork, time.Minute, 120 * time.Second},
		{types.UserLightWork, time.Minute, 30 * time.Second},
		{types.UserAway, 30 * time.Minute, 120 * time.Second},
		{types.UserAway, 90 * time.Minute, 300 * time.Second},
		{types.UserIdle, time.Minute, 60 * time.Second},
	}
	for _, tc := range cases {
		got := pacingFor(tc.state, tc.sinceInteraction)
		if got != tc.want {
			t.Errorf("pacingFor(%v, %v) = %v, want %v", tc.state, tc.sinceInteraction, got, tc.want)
		}
	}
}

func TestScheduler_TogglePauseParity(t *testing.T) {
	sched, _, _ := newTestScheduler(t, &fakeGenerator{})
	var last bool
	for i := 1; i <= 5; i++ {
		last = sched.TogglePause()
		want := i%2 == 1
		if last != want {
			t.Errorf("toggle #%d = %v, want %v", i, last, want)
		}
	}
	if !sched.Paused() {
		t.Error("Paused() should reflect the last toggle")
	}
}

func TestScheduler_OrientationFailurePersistsNoSnapshot(t *testing.T) {
	sched, s, bcast := newTestScheduler(t, &fakeGenerator{err: context.DeadlineExceeded})
	ch, unsub := bcast.Subscribe()
	defer unsub()

	pres := types.PresenceState{TimeContext: types.NewTimeContext(time.Now())}
	o := sched.runOrientation(context.Background(), pres)
	if o.Disposition != types.DispositionObserve {
		t.Errorf("expected fallback Observe disposition, got %v", o.Disposition)
	}

	snaps, err := s.RecentOrientationSnapshots(10)
	if err != nil {
		t.Fatalf("RecentOrientationSnapshots failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("expected no persisted snapshot on orientation failure, got %d", len(snaps))
	}

	select {
	case ev := <-ch:
		if ev.EventType != events.ErrorEvent {
			t.Errorf("expected ErrorEvent, got %v", ev.EventType)
		}
	case <-time.After(time.Second):
		t.Error("expected an error event to be published")
	}
}

func TestScheduler_RunJournalSkipsOnExplicitSkip(t *testing.T) {
	sched, s, _ := newTestScheduler(t, &fakeGenerator{response: `{"skip": true, "skip_reason": "nothing notable"}`})
	o := types.Orientation{Disposition: types.DispositionJournal, UserState: types.UserIdle, GeneratedAt: time.Now()}

	sched.runJournal(context.Background(), o)
	entries, err := s.RecentJournalEntries(10)
	if err != nil {
		t.Fatalf("RecentJournalEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no journal entry from an explicit skip response, got %d", len(entries))
	}
}

func TestScheduler_DreamCycleRecordsLastDreamTime(t *testing.T) {
	sched, s, _ := newTestScheduler(t, &fakeGenerator{response: "steady and curious"})
	o := types.Orientation{Disposition: types.DispositionObserve, GeneratedAt: time.Now()}

	sched.runDreamCycle(context.Background(), o)

	_, ok, err := s.GetState(lastDreamStateKey)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if !ok {
		t.Error("expected last_dream_time to be recorded after a dream cycle")
	}
}

func TestShouldDream_RequiresAwayOrDeepNightAndMinInterval(t *testing.T) {
	sched, _, _ := newTestScheduler(t, &fakeGenerator{})
	sched.cfg.EnableDreamCycle = true

	awake := types.PresenceState{TimeSinceInteraction: 5 * time.Minute}
	awayOrientation := types.Orientation{UserState: types.UserAway}
	if sched.shouldDream(awake, awayOrientation) {
		t.Error("expected no dream trigger when recently interacted and not deep night")
	}

	away := types.PresenceState{TimeSinceInteraction: 45 * time.Minute}
	if !sched.shouldDream(away, awayOrientation) {
		t.Error("expected dream trigger when away over 30 minutes and oriented as Away")
	}
}

func TestShouldDream_IgnoresPresenceIdleWhenOrientationDisagrees(t *testing.T) {
	sched, _, _ := newTestScheduler(t, &fakeGenerator{})
	sched.cfg.EnableDreamCycle = true

	away := types.PresenceState{TimeSinceInteraction: 45 * time.Minute}

	lightWork := types.Orientation{UserState: types.UserLightWork}
	if sched.shouldDream(away, lightWork) {
		t.Error("expected no dream trigger when the Orientation Engine's fused state is not Away, even if presence idle time is long")
	}

	idleFallback := types.Orientation{UserState: types.UserIdle}
	if sched.shouldDream(away, idleFallback) {
		t.Error("expected no dream trigger on a degraded-to-Idle orientation despite long presence idle time")
	}
}
