package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MLTQ/Ponderer/internal/events"
	"github.com/MLTQ/Ponderer/internal/logging"
	"github.com/MLTQ/Ponderer/internal/memoryeval"
	"github.com/MLTQ/Ponderer/internal/toolgate"
	"github.com/MLTQ/Ponderer/internal/types"
)

// runDreamCycle executes the ordered dream-cycle steps of §4.9.3: trajectory
// inference, journal consolidation, concern maintenance, memory evolution,
// and an optional exploration step. Each step is independently fallible;
// a failure logs and the cycle proceeds to the next step.
func (s *Scheduler) runDreamCycle(ctx context.Context, o types.Orientation) {
	s.broadcaster.Publish(events.DreamCycleStarted, nil)
	if s.gate != nil {
		s.gate.SetProfile(toolgate.ProfileDream)
	}

	s.inferTrajectory(ctx)
	s.consolidateJournal(ctx)
	s.maintainConcerns(ctx)
	s.evolveMemory(ctx)
	if s.cfg.EnableALMAExploration {
		s.exploreALMA(ctx)
	}

	if err := s.store.PutState(lastDreamStateKey, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		logging.Error("scheduler", "record last_dream_time failed: %v", err)
	}
	s.broadcaster.Publish(events.DreamCycleFinished, nil)
}

func (s *Scheduler) inferTrajectory(ctx context.Context) {
	recent, err := s.store.RecentJournalEntries(20)
	if err != nil {
		logging.Error("scheduler", "dream: read journal for trajectory failed: %v", err)
		return
	}
	if len(recent) == 0 {
		return
	}
	prev, _, err := s.store.LatestPersonaSnapshot()
	if err != nil {
		logging.Error("scheduler", "dream: read previous persona snapshot failed: %v", err)
	}

	var b strings.Builder
	b.WriteString("Given the prior trajectory and recent journal entries, write an updated one-paragraph personality trajectory.\n\n")
	if prev.Trajectory != "" {
		b.WriteString("Prior trajectory:\n" + prev.Trajectory + "\n\n")
	}
	b.WriteString("Recent entries:\n")
	for _, e := range recent {
		b.WriteString("- [" + e.EntryType.AsDBStr() + "] " + e.Content + "\n")
	}

	trajectory, err := s.gen.Generate(ctx, b.String())
	if err != nil {
		logging.Error("scheduler", "dream: trajectory inference failed: %v", err)
		return
	}
	trajectory = strings.TrimSpace(trajectory)
	if trajectory == "" {
		return
	}

	snapshot := types.PersonaSnapshot{
		Prompt:     prev.Prompt,
		Trajectory: trajectory,
		Traits:     prev.Traits,
		Trigger:    "dream_cycle",
		Timestamp:  time.Now(),
	}
	if _, err := s.store.AppendPersonaSnapshot(snapshot); err != nil {
		logging.Error("scheduler", "dream: persist persona snapshot failed: %v", err)
	}
}

// consolidateJournal asks the LLM to identify any repeated themes across
// recent entries worth noting and logs the result at debug level; nothing is
// persisted and the append-only journal itself is never mutated (journal
// entries are immutable, per §3's JournalEntry invariant).
func (s *Scheduler) consolidateJournal(ctx context.Context) {
	recent, err := s.store.RecentJournalEntries(20)
	if err != nil || len(recent) < 2 {
		return
	}

	var b strings.Builder
	b.WriteString("Identify one recurring theme across these journal entries, in one sentence. If there is none, respond with exactly \"none\".\n\n")
	for _, e := range recent {
		b.WriteString("- " + e.Content + "\n")
	}

	theme, err := s.gen.Generate(ctx, b.String())
	if err != nil {
		logging.Error("scheduler", "dream: journal consolidation failed: %v", err)
		return
	}
	theme = strings.TrimSpace(theme)
	if theme == "" || strings.EqualFold(theme, "none") {
		return
	}
	logging.Debug("scheduler", "dream: journal theme: %s", theme)
}

func (s *Scheduler) maintainConcerns(ctx context.Context) {
	proposer := &llmDuplicateProposer{gen: s.gen}
	report, err := s.concernsMgr.RunMaintenance(time.Now(), proposer)
	if err != nil {
		logging.Error("scheduler", "dream: concern maintenance failed: %v", err)
		return
	}
	logging.Debug("scheduler", "dream maintenance: demoted=%d archived=%d consolidated=%d",
		len(report.Demoted), len(report.Archived), len(report.Consolidated))
}

// evolveMemory runs a Memory Eval pass of the active design over the replay
// traces and records the resulting report. It makes no Promotion attempt.
// With no replay source wired this is a no-op rather than fabricating scores
// against an empty trace set (gonum's Correlation/Mean are undefined on
// zero-length input).
func (s *Scheduler) evolveMemory(ctx context.Context) {
	traces := s.replayTraces()
	if len(traces) == 0 {
		return
	}
	active, ok, err := s.store.ActiveMemoryDesign()
	if err != nil || !ok {
		return
	}
	report := memoryeval.Evaluate(active.MemoryDesignID, active.MemorySchemaVersion, traces, time.Now())
	if _, err := s.store.RecordMemoryEvalRun(report); err != nil {
		logging.Error("scheduler", "dream: record memory eval run failed: %v", err)
	}
}

// replayTraces is a seam for wiring a real offline replay source; it
// returns nil until one is configured, per evolveMemory's doc comment.
func (s *Scheduler) replayTraces() []memoryeval.ReplayTrace {
	return nil
}

// exploreALMA is an optional, best-effort exploration step gated by
// enable_alma_exploration (§6.3); it has no concrete behavior specified
// beyond being attempted when enabled, so it logs its invocation and
// returns.
func (s *Scheduler) exploreALMA(ctx context.Context) {
	logging.Debug("scheduler", "dream: ALMA exploration step invoked (no-op placeholder)")
}

type llmDuplicateProposer struct {
	gen interface {
		Generate(ctx context.Context, prompt string) (string, error)
	}
}

func (p *llmDuplicateProposer) AreDuplicates(a, b types.Concern) bool {
	if p.gen == nil {
		return false
	}
	prompt := fmt.Sprintf("Are these two concerns about the same underlying topic? Answer only YES or NO.\n\nA: %s\nB: %s", a.Summary, b.Summary)
	resp, err := p.gen.Generate(context.Background(), prompt)
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(resp)), "YES")
}
