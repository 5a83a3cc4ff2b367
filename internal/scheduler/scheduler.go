// Package scheduler implements the Core Loop (§4.9): the single logical
// driver that samples presence, orients, executes a disposition, reacts to
// operator messages, and periodically runs a dream cycle. It is the only
// component that owns the lifecycle of the ambient, engaged, and dream
// subtasks (§3 ownership note).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MLTQ/Ponderer/internal/concerns"
	"github.com/MLTQ/Ponderer/internal/config"
	"github.com/MLTQ/Ponderer/internal/events"
	"github.com/MLTQ/Ponderer/internal/journal"
	"github.com/MLTQ/Ponderer/internal/llm"
	"github.com/MLTQ/Ponderer/internal/logging"
	"github.com/MLTQ/Ponderer/internal/memory"
	"github.com/MLTQ/Ponderer/internal/orientation"
	"github.com/MLTQ/Ponderer/internal/presence"
	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/toolgate"
	"github.com/MLTQ/Ponderer/internal/types"
)

const lastDreamStateKey = "last_dream_time"

// Scheduler is the Core Loop's single logical driver.
type Scheduler struct {
	store       *store.Store
	cfg         config.Config
	presence    *presence.Sampler
	orient      *orientation.Engine
	journalEng  *journal.Engine
	concernsMgr *concerns.Manager
	memRegistry *memory.Registry
	gate        *toolgate.Gate
	broadcaster *events.Broadcaster
	budget      *EngagedBudget
	gen         llm.Generator

	mu     sync.Mutex
	paused bool

	stopCh chan struct{}
}

// Deps bundles every collaborator the scheduler is constructed with. All
// fields are required except Gate, Memory and Budget, which may be nil: a
// nil Gate skips profile switches, a nil Budget leaves the engaged path
// unmetered, and the scheduler never reads Memory.
type Deps struct {
	Store       *store.Store
	Config      config.Config
	Presence    *presence.Sampler
	Orientation *orientation.Engine
	Journal     *journal.Engine
	Concerns    *concerns.Manager
	Memory      *memory.Registry
	Gate        *toolgate.Gate
	Broadcaster *events.Broadcaster
	Budget      *EngagedBudget
	Generator   llm.Generator
}

// New constructs a Scheduler from its dependencies.
func New(d Deps) *Scheduler {
	return &Scheduler{
		store:       d.Store,
		cfg:         d.Config,
		presence:    d.Presence,
		orient:      d.Orientation,
		journalEng:  d.Journal,
		concernsMgr: d.Concerns,
		memRegistry: d.Memory,
		gate:        d.Gate,
		broadcaster: d.Broadcaster,
		budget:      d.Budget,
		gen:         d.Generator,
		stopCh:      make(chan struct{}),
	}
}

// TogglePause flips the paused flag and returns the new value. It is
// level-triggered: it cannot interrupt a mid-flight engaged cycle, only
// the top of the next iteration observes it (§5).
func (s *Scheduler) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	s.broadcaster.Publish(events.StateChanged, map[string]any{"paused": s.paused})
	return s.paused
}

// Paused reports the current pause state.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stop aborts the current sleep and ends Run after its in-flight iteration
// completes (§5: shutdown aborts the sleep, drains the broadcaster,
// flushes the store, and exits within a bounded time).
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// Run drives the top-level loop (§4.9.1) until ctx is cancelled or Stop is
// called. Each iteration is strictly sequential: Presence → Orientation →
// Disposition → Engaged → Skill → Dream-check → pacing.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		if s.Paused() {
			s.sleep(ctx, s.cfg.PollInterval())
			continue
		}

		s.runIteration(ctx)
	}
}

func (s *Scheduler) runIteration(ctx context.Context) {
	s.broadcaster.Publish(events.CycleStart, nil)

	pres := s.presence.Sample()

	orientation := s.runOrientation(ctx, pres)

	s.executeDisposition(ctx, orientation)

	if msgs, err := s.store.UnprocessedPrivateMessages(); err == nil && len(msgs) > 0 {
		s.presence.RecordInteraction()
		s.runEngagedPath(ctx, msgs)
	}

	if orientation.Disposition != types.DispositionIdle {
		s.runSkillEventCycle(ctx, orientation)
	}

	if s.shouldDream(pres, orientation) {
		s.runDreamCycle(ctx, orientation)
	}

	s.sleep(ctx, pacingFor(orientation.UserState, pres.TimeSinceInteraction))
}

// runOrientation calls the Orientation Engine and persists a snapshot on
// success. On failure it emits an error event and degrades to Observe
// without persisting (§4.9.1 step 3, §7).
func (s *Scheduler) runOrientation(ctx context.Context, pres types.PresenceState) types.Orientation {
	active, err := s.concernsMgr.QueryActive()
	if err != nil {
		logging.Error("scheduler", "query active concerns failed: %v", err)
	}
	recent, err := s.store.RecentJournalEntries(10)
	if err != nil {
		logging.Error("scheduler", "query recent journal failed: %v", err)
	}
	persona, _, err := s.store.LatestPersonaSnapshot()
	if err != nil {
		logging.Error("scheduler", "query persona snapshot failed: %v", err)
	}

	input := orientation.Input{
		Now:            time.Now(),
		Presence:       pres,
		ActiveConcerns: active,
		RecentJournal:  recent,
		PersonaTraj:    persona.Trajectory,
	}

	o, err := s.orient.Orient(ctx, input)
	if err != nil {
		s.broadcaster.Publish(events.ErrorEvent, map[string]string{"description": "orientation failed: " + err.Error()})
		return o // already the fallback Observe orientation
	}

	if _, err := s.store.InsertOrientationSnapshot(o); err != nil {
		logging.Error("scheduler", "persist orientation snapshot failed: %v", err)
	}
	s.broadcaster.Publish(events.OrientationUpdate, o)
	return o
}

// shouldDream evaluates §4.9.3's dream trigger: user_state = Away with
// since > 30min (per the Orientation Engine's fused state, not raw presence
// idle time, since the two can diverge on an LLM failure or a correct
// override) or deep-night, subject to a minimum interval since the
// previous dream.
func (s *Scheduler) shouldDream(pres types.PresenceState, o types.Orientation) bool {
	if !s.cfg.EnableDreamCycle {
		return false
	}
	awayLongEnough := o.UserState == types.UserAway && pres.TimeSinceInteraction > 30*time.Minute
	if !awayLongEnough && !pres.TimeContext.IsDeepNight {
		return false
	}

	lastStr, ok, err := s.store.GetState(lastDreamStateKey)
	if err != nil || !ok {
		return true
	}
	last, err := time.Parse(time.RFC3339Nano, lastStr)
	if err != nil {
		return true
	}
	return time.Since(last) >= s.cfg.DreamMinInterval()
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-s.stopCh:
	case <-timer.C:
	}
}

// pacingFor implements §4.9.2's adaptive pacing table. Away is split on the
// 1-hour mark using how long since the last interaction.
func pacingFor(userState types.UserState, sinceInteraction time.Duration) time.Duration {
	switch userState {
	case types.UserDeepWork:
		return 120 * time.Second
	case types.UserLightWork:
		return 30 * time.Second
	case types.UserAway:
		if sinceInteraction >= time.Hour {
			return 300 * time.Second
		}
		return 120 * time.Second
	default: // Idle
		return 60 * time.Second
	}
}
