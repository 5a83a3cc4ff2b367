// Package concerns implements the Concerns Manager (§4.5): CRUD over
// long-lived topics/projects/reminders the agent tracks, the salience decay
// state machine evaluated during dream-cycle maintenance, and consolidation
// of concerns an LLM proposer judges to be duplicates.
package concerns

import (
	"time"

	"github.com/google/uuid"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/logging"
	"github.com/MLTQ/Ponderer/internal/nlp"
	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/types"
)

const (
	monitoringAfter = 7 * 24 * time.Hour
	backgroundAfter = 30 * 24 * time.Hour
	dormantAfter    = 90 * 24 * time.Hour
)

// Policy decides whether a new concern should be auto-created from an
// observed signal. Per §9's open-question resolution, the default policy
// never auto-creates. The Manager stores the injected Policy, but no Manager
// method calls ShouldAutoCreate; concerns are created only through Create.
type Policy interface {
	ShouldAutoCreate(signal string) (summary string, concernType types.ConcernType, ok bool)
}

// NoAutoCreatePolicy is the default Policy: it never proposes a new concern.
type NoAutoCreatePolicy struct{}

func (NoAutoCreatePolicy) ShouldAutoCreate(signal string) (string, types.ConcernType, bool) {
	return "", "", false
}

// Manager is the Concerns Manager, backed by the persistence store.
type Manager struct {
	store  *store.Store
	policy Policy
}

// NewManager constructs a Manager with the given auto-create policy. Pass
// NoAutoCreatePolicy{} to match the spec's default.
func NewManager(s *store.Store, policy Policy) *Manager {
	if policy == nil {
		policy = NoAutoCreatePolicy{}
	}
	return &Manager{store: s, policy: policy}
}

// Create adds a new concern. CreatedAt and LastTouched are both set to now.
func (m *Manager) Create(summary string, concernType types.ConcernType, origin string) (types.Concern, error) {
	now := time.Now()
	c := types.Concern{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		LastTouched: now,
		Summary:     summary,
		ConcernType: concernType,
		Salience:    types.SalienceActive,
		Context:     types.ConcernContext{Origin: origin},
	}
	if err := m.store.CreateConcern(c); err != nil {
		return types.Concern{}, err
	}
	return c, nil
}

// Touch updates last_touched, appends a context note, and reactivates the
// concern to Active salience regardless of its prior tier — an explicit
// touch always wins per §4.5's "any → Active" edge.
func (m *Manager) Touch(id, note string) (types.Concern, error) {
	c, err := m.store.GetConcern(id)
	if err != nil {
		return types.Concern{}, err
	}
	if c == nil {
		return types.Concern{}, apperr.Wrap(apperr.Storage, "concern %s not found", id)
	}

	now := time.Now()
	entities := nlp.Names(note)
	if len(entities) > 0 {
		note = note + " [" + joinComma(entities) + "]"
	}
	c.LastTouched = now
	c.Salience = types.SalienceActive
	c.Context.Updates = append(c.Context.Updates, types.ContextNote{At: now, Note: note})

	if err := m.store.UpdateConcern(*c); err != nil {
		return types.Concern{}, err
	}
	return *c, nil
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// UpdateThoughts replaces the concern's free-text my_thoughts field.
func (m *Manager) UpdateThoughts(id, thoughts string) error {
	c, err := m.store.GetConcern(id)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.Wrap(apperr.Storage, "concern %s not found", id)
	}
	c.MyThoughts = thoughts
	return m.store.UpdateConcern(*c)
}

// UpdateSalience sets the salience tier directly, bypassing the decay
// schedule — used for explicit reactivation or operator override.
func (m *Manager) UpdateSalience(id string, salience types.Salience) error {
	c, err := m.store.GetConcern(id)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.Wrap(apperr.Storage, "concern %s not found", id)
	}
	c.Salience = salience
	return m.store.UpdateConcern(*c)
}

// QueryActive returns every concern currently at Active salience.
func (m *Manager) QueryActive() ([]types.Concern, error) {
	return m.store.ListActiveConcerns()
}

// QueryAll returns every concern regardless of salience tier.
func (m *Manager) QueryAll() ([]types.Concern, error) {
	return m.store.ListAllConcerns()
}

// RunMaintenance evaluates the salience decay state machine against every
// concern's last_touched age and applies demotions, then runs consolidation
// over the resulting set. The dream cycle calls it with an LLM-backed
// proposer; the Maintain disposition calls it with a nil proposer, which
// skips consolidation.
func (m *Manager) RunMaintenance(now time.Time, proposer DuplicateProposer) (types.MaintenanceReport, error) {
	all, err := m.store.ListAllConcerns()
	if err != nil {
		return types.MaintenanceReport{}, err
	}

	var report types.MaintenanceReport
	for _, c := range all {
		next, demoted := nextSalience(c.Salience, now.Sub(c.LastTouched))
		if !demoted {
			continue
		}
		c.Salience = next
		if err := m.store.UpdateConcern(c); err != nil {
			logging.Error("concerns", "demote %s failed: %v", c.ID, err)
			continue
		}
		if next == types.SalienceDormant {
			report.Archived = append(report.Archived, c.ID)
		} else {
			report.Demoted = append(report.Demoted, c.ID)
		}
	}

	merged, err := m.consolidate(proposer)
	if err != nil {
		logging.Error("concerns", "consolidation failed: %v", err)
	} else {
		report.Consolidated = merged
	}

	return report, nil
}

// nextSalience applies the decay thresholds of §4.5. Thresholds are
// inclusive: exactly 7/30/90 days since last touch already qualifies.
func nextSalience(current types.Salience, age time.Duration) (types.Salience, bool) {
	switch current {
	case types.SalienceActive:
		if age >= monitoringAfter {
			return types.SalienceMonitoring, true
		}
	case types.SalienceMonitoring:
		if age >= backgroundAfter {
			return types.SalienceBackground, true
		}
	case types.SalienceBackground:
		if age >= dormantAfter {
			return types.SalienceDormant, true
		}
	}
	return current, false
}

// DuplicateProposer decides whether two concerns are duplicates, typically
// backed by an LLM judgment. It is injected so consolidation stays testable
// without a live LLM.
type DuplicateProposer interface {
	AreDuplicates(a, b types.Concern) bool
}

// consolidate merges concerns the proposer judges duplicates. The surviving
// concern inherits the union of related_memory_keys and the earlier
// created_at, per §4.5. Running consolidate twice on the same state is
// idempotent: the second pass finds no remaining duplicate pairs.
func (m *Manager) consolidate(proposer DuplicateProposer) ([]string, error) {
	if proposer == nil {
		return nil, nil
	}
	all, err := m.store.ListAllConcerns()
	if err != nil {
		return nil, err
	}

	var merged []string
	removed := make(map[string]bool)
	for i := 0; i < len(all); i++ {
		if removed[all[i].ID] {
			continue
		}
		for j := i + 1; j < len(all); j++ {
			if removed[all[j].ID] {
				continue
			}
			if !proposer.AreDuplicates(all[i], all[j]) {
				continue
			}
			survivor, loser := mergeConcerns(all[i], all[j])
			if err := m.store.UpdateConcern(survivor); err != nil {
				return merged, err
			}
			if err := m.store.DeleteConcern(loser); err != nil {
				return merged, err
			}
			removed[loser] = true
			all[i] = survivor
			merged = append(merged, loser)
		}
	}
	return merged, nil
}

// mergeConcerns returns the surviving concern (with union'd memory keys and
// earliest created_at) and the id of the concern to delete. The earlier of
// the two concerns by created_at is kept as the base record so its id is
// stable across repeated consolidation passes.
func mergeConcerns(a, b types.Concern) (survivor types.Concern, loserID string) {
	base, other := a, b
	if other.CreatedAt.Before(base.CreatedAt) {
		base, other = other, base
	}

	keys := make(map[string]bool, len(base.RelatedMemoryKeys)+len(other.RelatedMemoryKeys))
	var union []string
	for _, k := range append(append([]string{}, base.RelatedMemoryKeys...), other.RelatedMemoryKeys...) {
		if !keys[k] {
			keys[k] = true
			union = append(union, k)
		}
	}
	base.RelatedMemoryKeys = union
	base.Context.Updates = append(base.Context.Updates, other.Context.Updates...)
	if other.LastTouched.After(base.LastTouched) {
		base.LastTouched = other.LastTouched
	}
	return base, other.ID
}
