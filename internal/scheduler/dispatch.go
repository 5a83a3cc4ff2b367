package scheduler

import (
	"context"
	"time"

	"github.com/MLTQ/Ponderer/internal/events"
	"github.com/MLTQ/Ponderer/internal/journal"
	"github.com/MLTQ/Ponderer/internal/logging"
	"github.com/MLTQ/Ponderer/internal/types"
)

// executeDisposition runs the action selected for o.Disposition, per the
// dispatch table in §4.9.4.
func (s *Scheduler) executeDisposition(ctx context.Context, o types.Orientation) {
	switch o.Disposition {
	case types.DispositionIdle:
		// no-op
	case types.DispositionObserve:
		s.logAnomalies(o)
	case types.DispositionJournal:
		s.runJournal(ctx, o)
	case types.DispositionMaintain:
		s.runMaintain(ctx)
	case types.DispositionSurface:
		s.runSurface(o)
	case types.DispositionInterrupt:
		s.runInterrupt(o)
	}
}

func (s *Scheduler) logAnomalies(o types.Orientation) {
	for _, a := range o.Anomalies {
		logging.Info("scheduler", "anomaly [%s] %s", a.Severity.AsDBStr(), a.Description)
	}
}

func (s *Scheduler) runJournal(ctx context.Context, o types.Orientation) {
	lastAt, hadPrevious, err := s.store.LastJournalEntryTime()
	if err != nil {
		logging.Error("scheduler", "read last journal time failed: %v", err)
		return
	}
	if !journal.RateLimitOK(hadPrevious, lastAt, time.Now(), s.cfg.JournalMinInterval()) {
		return
	}

	recent, err := s.store.RecentJournalEntries(5)
	if err != nil {
		logging.Error("scheduler", "read recent journal entries failed: %v", err)
	}
	active, err := s.concernsMgr.QueryActive()
	if err != nil {
		logging.Error("scheduler", "read active concerns failed: %v", err)
	}

	entry, err := s.journalEng.MaybeGenerateEntry(ctx, o, recent, active)
	if err != nil {
		logging.Debug("scheduler", "journal generation error: %v", err)
		return
	}
	if entry == nil {
		return
	}
	if err := s.store.AppendJournalEntry(*entry); err != nil {
		logging.Error("scheduler", "append journal entry failed: %v", err)
		return
	}
	s.broadcaster.Publish(events.JournalWritten, entry)
}

func (s *Scheduler) runMaintain(ctx context.Context) {
	report, err := s.concernsMgr.RunMaintenance(time.Now(), nil)
	if err != nil {
		logging.Error("scheduler", "background maintenance failed: %v", err)
		return
	}
	logging.Debug("scheduler", "maintenance: demoted=%d archived=%d consolidated=%d",
		len(report.Demoted), len(report.Archived), len(report.Consolidated))
}

func (s *Scheduler) runSurface(o types.Orientation) {
	for _, p := range o.PendingThoughts {
		if err := s.store.EnqueuePendingThought(p); err != nil {
			logging.Error("scheduler", "enqueue pending thought failed: %v", err)
		}
	}
}

func (s *Scheduler) runInterrupt(o types.Orientation) {
	desc := "an anomaly requires attention"
	highest := types.Severity("")
	for _, a := range o.Anomalies {
		if severityRank(a.Severity) > severityRank(highest) {
			highest = a.Severity
			desc = a.Description
		}
	}
	s.broadcaster.Publish(events.AttentionNeeded, map[string]string{"description": desc})
}

func severityRank(sv types.Severity) int {
	switch sv {
	case types.SeverityUrgent:
		return 4
	case types.SeverityConcerning:
		return 3
	case types.SeverityNotable:
		return 2
	case types.SeverityInteresting:
		return 1
	default:
		return 0
	}
}
