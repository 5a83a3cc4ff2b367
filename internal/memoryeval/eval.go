// Package memoryeval implements the Memory Eval & Promotion workflow: an
// offline, deterministic replay evaluation of a candidate memory design,
// and a gated promotion policy that only swaps the active design when the
// candidate clears quality gates and beats the incumbent by a configured
// margin. Every promotion always carries a rollback target, never a bare
// "discard".
//
// Correlation and mean statistics use gonum's stat package the same way
// internal/eval/judge.go's SampleReport.Correlation does, rather than
// hand-rolling a Pearson coefficient.
package memoryeval

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/types"
)

// ReplayTrace is one recorded (query, expected relevance, predicted
// relevance) triple used to score a candidate design offline.
type ReplayTrace struct {
	Query     string
	Expected  float64 // ground-truth relevance in [0,1]
	Predicted float64 // candidate design's retrieval score in [0,1]
}

// Gates are the minimum-quality thresholds a candidate must clear before
// promotion is even considered.
type Gates struct {
	MinCorrelation float64
	MinMeanScore   float64
}

// DefaultGates matches a deliberately conservative starting point: a
// candidate with no better than chance correlation, or a mean score that
// would regress retrieval quality outright, never promotes.
func DefaultGates() Gates {
	return Gates{MinCorrelation: 0.3, MinMeanScore: 0.4}
}

// Evaluate runs a deterministic offline replay of replayTraces against a
// candidate design and produces a MemoryEvalReport. It is pure with respect
// to persisted state — callers decide whether and how to archive the
// result.
func Evaluate(designID string, schemaVersion int, traces []ReplayTrace, now time.Time) types.MemoryEvalReport {
	expected := make([]float64, len(traces))
	predicted := make([]float64, len(traces))
	for i, tr := range traces {
		expected[i] = tr.Expected
		predicted[i] = tr.Predicted
	}

	var correlation, meanScore float64
	if len(traces) > 1 {
		correlation = stat.Correlation(expected, predicted, nil)
	}
	if len(traces) > 0 {
		meanScore = stat.Mean(predicted, nil)
	}

	return types.MemoryEvalReport{
		DesignID:   designID,
		SchemaVer:  schemaVersion,
		SampleSize: len(traces),
		RanAt:      now,
		Metrics: map[string]float64{
			"correlation": correlation,
			"mean_score":  meanScore,
		},
	}
}

// passesGates reports whether a candidate report clears the minimum-quality
// gates on its own, independent of the incumbent.
func passesGates(report types.MemoryEvalReport, gates Gates) bool {
	return report.Metrics["correlation"] >= gates.MinCorrelation &&
		report.Metrics["mean_score"] >= gates.MinMeanScore
}

// beatsIncumbent reports whether candidate beats incumbent by at least
// margin on every metric the incumbent also reports.
func beatsIncumbent(candidate, incumbent types.MemoryEvalReport, margin float64) bool {
	for metric, incumbentValue := range incumbent.Metrics {
		candidateValue, ok := candidate.Metrics[metric]
		if !ok {
			return false
		}
		if candidateValue < incumbentValue+margin {
			return false
		}
	}
	return true
}

// Promoter applies the gated promotion policy (§4.4.b) against the store's
// active memory designator.
type Promoter struct {
	Gates  Gates
	Margin float64
}

// NewPromoter returns a Promoter with default gates and a 0.05 required
// margin over the incumbent on every gated metric.
func NewPromoter() *Promoter {
	return &Promoter{Gates: DefaultGates(), Margin: 0.05}
}

// Promote evaluates whether candidate should replace the currently active
// design, and if so, updates the active designator and writes a
// PromotionDecision in one atomic step. If the gates or margin are not met,
// it returns a PromotionDecision with Approved=false and makes no change to
// the active designator.
func (p *Promoter) Promote(s *store.Store, candidate types.MemoryEvalReport, now time.Time) (types.PromotionDecision, error) {
	active, ok, err := s.ActiveMemoryDesign()
	if err != nil {
		return types.PromotionDecision{}, apperr.WrapErr(apperr.Storage, "read active memory design", err)
	}
	if !ok {
		return types.PromotionDecision{}, apperr.Wrap(apperr.Concurrency, "no active memory design to promote against")
	}

	incumbentRuns, err := s.RecentMemoryEvalRuns(active.MemoryDesignID, 1)
	if err != nil {
		return types.PromotionDecision{}, apperr.WrapErr(apperr.Storage, "read incumbent eval run", err)
	}

	decision := types.PromotionDecision{
		FromDesignID:          active.MemoryDesignID,
		FromSchemaVersion:     active.MemorySchemaVersion,
		ToDesignID:            candidate.DesignID,
		ToSchemaVersion:       candidate.SchemaVer,
		RollbackDesignID:      active.MemoryDesignID,
		RollbackSchemaVersion: active.MemorySchemaVersion,
		DecidedAt:             now,
	}

	if !passesGates(candidate, p.Gates) {
		decision.Reason = "candidate did not clear minimum-quality gates"
		decision.Approved = false
	} else if len(incumbentRuns) > 0 && !beatsIncumbent(candidate, incumbentRuns[0], p.Margin) {
		decision.Reason = "candidate did not beat incumbent by required margin"
		decision.Approved = false
	} else {
		decision.Reason = "candidate cleared gates and margin"
		decision.Approved = true
	}

	if decision.Approved {
		// The designator swap and the decision record must land together
		// (§4.4.b): a crash between two separate writes here could leave the
		// active design pointing one place and the audit trail another.
		if _, err := s.PromoteActiveMemoryDesign(types.MemoryDesignVersion{
			MemoryDesignID:      candidate.DesignID,
			MemorySchemaVersion: candidate.SchemaVer,
		}, decision); err != nil {
			return types.PromotionDecision{}, apperr.WrapErr(apperr.Storage, "promote active memory design", err)
		}
		return decision, nil
	}

	if _, err := s.RecordPromotionDecision(decision); err != nil {
		return types.PromotionDecision{}, apperr.WrapErr(apperr.Storage, "record promotion decision", err)
	}
	return decision, nil
}

// Rollback restores the active designator to the target recorded on the
// most recent promotion decision. All archive and eval-run records are left
// untouched.
func Rollback(s *store.Store) (types.MemoryDesignVersion, error) {
	last, ok, err := s.LastPromotionDecision()
	if err != nil {
		return types.MemoryDesignVersion{}, apperr.WrapErr(apperr.Storage, "read last promotion decision", err)
	}
	if !ok {
		return types.MemoryDesignVersion{}, apperr.Wrap(apperr.Concurrency, "no promotion decision to roll back")
	}
	target := types.MemoryDesignVersion{
		MemoryDesignID:      last.RollbackDesignID,
		MemorySchemaVersion: last.RollbackSchemaVersion,
	}
	if err := s.SetActiveMemoryDesign(target); err != nil {
		return types.MemoryDesignVersion{}, apperr.WrapErr(apperr.Storage, "roll back active memory design", err)
	}
	return target, nil
}
