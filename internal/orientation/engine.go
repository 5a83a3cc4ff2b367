// Package orientation implements the Orientation Engine (§4.7): it fuses
// presence, concerns, recent journal entries, pending thoughts, and persona
// trajectory into a single Orientation per scheduler tick, by building a
// prompt, parsing a strict JSON response, and then applying hard rules that
// can override whatever disposition the LLM suggested.
package orientation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MLTQ/Ponderer/internal/llm"
	"github.com/MLTQ/Ponderer/internal/logging"
	"github.com/MLTQ/Ponderer/internal/types"
)

// UrgentOverridesDeepWork resolves the contradiction the spec itself flags
// between §4.7 ("DeepWork never Interrupt") and §8 scenario 2 (an Urgent
// anomaly during DeepWork must still produce Interrupt). This package
// always evaluates the Urgent rule first, matching scenario 2; the constant
// exists so an operator auditing behavior can see the choice was deliberate
// rather than toggle it (the DeepWork-wins alternative is not wired to
// anything — changing this requires a code change, by design of the
// decision record in SPEC_FULL.md).
const UrgentOverridesDeepWork = true

const generateDeadline = 20 * time.Second

// Input bundles everything the Orientation Engine reads to build its
// prompt and apply its hard rules.
type Input struct {
	Now             time.Time
	Presence        types.PresenceState
	ActiveConcerns  []types.Concern
	RecentJournal   []types.JournalEntry
	PendingThoughts []types.PendingThought
	PersonaTraj     string
}

// Engine calls an LLM to synthesize an Orientation.
type Engine struct {
	gen llm.Generator
}

// NewEngine constructs an Engine backed by gen.
func NewEngine(gen llm.Generator) *Engine {
	return &Engine{gen: gen}
}

type llmOrientationResponse struct {
	UserState         string             `json:"user_state"`
	UserStateConf     float64            `json:"user_state_confidence"`
	SalientItems      []salientItemWire  `json:"salient_items"`
	Anomalies         []anomalyWire      `json:"anomalies"`
	PendingThoughts   []pendingThoughtWire `json:"pending_thoughts"`
	Disposition       string             `json:"disposition"`
	DispositionReason string             `json:"disposition_reason"`
	Mood              moodWire           `json:"mood"`
	Synthesis         string             `json:"synthesis"`
}

type salientItemWire struct {
	ConcernID string  `json:"concern_id"`
	Summary   string  `json:"summary"`
	Relevance float64 `json:"relevance"`
}

type anomalyWire struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type pendingThoughtWire struct {
	Content   string   `json:"content"`
	Context   string   `json:"context"`
	Priority  float64  `json:"priority"`
	RelatesTo []string `json:"relates_to"`
}

type moodWire struct {
	Valence    float64 `json:"valence"`
	Arousal    float64 `json:"arousal"`
	Confidence float64 `json:"confidence"`
}

// Orient builds a prompt from in, calls the LLM, and returns a fully
// resolved Orientation with hard rules already applied to the disposition.
// On any failure (LLM error, unparseable/invalid response), it returns a
// degraded Orientation with disposition=Observe and a non-nil error so the
// caller can decide whether to persist a snapshot (per §7, orientation
// failures degrade to Observe without persisting).
func (e *Engine) Orient(ctx context.Context, in Input) (types.Orientation, error) {
	ctx, cancel := context.WithTimeout(ctx, generateDeadline)
	defer cancel()

	prompt := buildPrompt(in)
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		logging.Debug("orientation", "generate failed, degrading to Observe: %v", err)
		return fallback(in.Now), err
	}

	resp, ok := parseResponse(raw)
	if !ok {
		logging.Debug("orientation", "unparseable response, degrading to Observe: %s", logging.Truncate(raw, 200))
		return fallback(in.Now), errUnparseable
	}

	return resolve(resp, in), nil
}

var errUnparseable = &orientationError{"unparseable orientation response"}

type orientationError struct{ msg string }

func (e *orientationError) Error() string { return e.msg }

func fallback(now time.Time) types.Orientation {
	return types.Orientation{
		UserState:         types.UserIdle,
		UserStateConf:     0,
		Disposition:       types.DispositionObserve,
		DispositionReason: "orientation degraded: falling back to Observe",
		GeneratedAt:       now,
	}
}

func resolve(resp llmOrientationResponse, in Input) types.Orientation {
	userState, ok := types.UserStateFromDBStr(resp.UserState)
	if !ok {
		userState = types.UserIdle
	}

	anomalies := make([]types.Anomaly, 0, len(resp.Anomalies))
	highestSeverity := types.Severity("")
	for _, a := range resp.Anomalies {
		sev, ok := types.SeverityFromDBStr(a.Severity)
		if !ok {
			continue
		}
		anomalies = append(anomalies, types.Anomaly{Description: a.Description, Severity: sev})
		if severityRank(sev) > severityRank(highestSeverity) {
			highestSeverity = sev
		}
	}

	salience := make([]types.SalienceItem, 0, len(resp.SalientItems))
	for _, s := range resp.SalientItems {
		salience = append(salience, types.SalienceItem{ConcernID: s.ConcernID, Summary: s.Summary, Relevance: s.Relevance})
	}
	sort.Slice(salience, func(i, j int) bool { return salience[i].Relevance > salience[j].Relevance })

	pending := make([]types.PendingThought, 0, len(resp.PendingThoughts))
	now := in.Now
	for _, p := range resp.PendingThoughts {
		pending = append(pending, types.PendingThought{
			ID:        uuid.NewString(),
			Content:   p.Content,
			Context:   p.Context,
			Priority:  p.Priority,
			RelatesTo: p.RelatesTo,
			CreatedAt: now,
		})
	}

	disposition, ok := types.DispositionFromDBStr(resp.Disposition)
	if !ok {
		disposition = types.DispositionObserve // default tie-break per §4.7
	}
	disposition = applyHardRules(disposition, userState, highestSeverity)

	return types.Orientation{
		UserState:         userState,
		UserStateConf:     resp.UserStateConf,
		SalienceMap:       salience,
		Anomalies:         anomalies,
		PendingThoughts:   pending,
		Disposition:       disposition,
		DispositionReason: resp.DispositionReason,
		Mood: types.Mood{
			Valence:    resp.Mood.Valence,
			Arousal:    resp.Mood.Arousal,
			Confidence: resp.Mood.Confidence,
		},
		RawSynthesis: resp.Synthesis,
		GeneratedAt:  now,
	}
}

func severityRank(s types.Severity) int {
	switch s {
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

// applyHardRules enforces §4.7's disposition overrides on top of whatever
// the LLM suggested.
func applyHardRules(disposition types.Disposition, userState types.UserState, highestSeverity types.Severity) types.Disposition {
	if UrgentOverridesDeepWork && highestSeverity == types.SeverityUrgent {
		return types.DispositionInterrupt
	}
	if userState == types.UserDeepWork {
		if disposition == types.DispositionInterrupt && severityRank(highestSeverity) < severityRank(types.SeverityConcerning) {
			return types.DispositionObserve
		}
	}
	// Away >= 30min only *permits* Journal/Maintain (§4.7); it never forces
	// or blocks a disposition, so no further clamp applies here.
	return disposition
}

func parseResponse(raw string) (llmOrientationResponse, bool) {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return llmOrientationResponse{}, false
	}
	var resp llmOrientationResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return llmOrientationResponse{}, false
	}
	return resp, true
}

func buildPrompt(in Input) string {
	var b strings.Builder
	tc := types.NewTimeContext(in.Now)

	b.WriteString("Synthesize the current situation into a strict JSON Orientation.\n\n")
	b.WriteString("## Time\n")
	b.WriteString(timeSummary(tc))

	b.WriteString("\n\n## System\n")
	b.WriteString(systemSummary(in.Presence))

	b.WriteString("\n\n## Presence\n")
	b.WriteString(presenceSummary(in.Presence))

	if len(in.ActiveConcerns) > 0 {
		b.WriteString("\n\n## Concerns\n")
		for _, c := range in.ActiveConcerns {
			b.WriteString("- (" + c.ID + ") [" + c.ConcernType.AsDBStr() + "] " + c.Summary + "\n")
		}
	}

	if len(in.RecentJournal) > 0 {
		b.WriteString("\n## Recent journal\n")
		for _, e := range in.RecentJournal {
			b.WriteString("- [" + e.EntryType.AsDBStr() + "] " + e.Content + "\n")
		}
	}

	if len(in.PendingThoughts) > 0 {
		b.WriteString("\n## Pending events\n")
		for _, p := range in.PendingThoughts {
			b.WriteString("- " + p.Content + "\n")
		}
	}

	if in.PersonaTraj != "" {
		b.WriteString("\n## Trajectory\n")
		b.WriteString(in.PersonaTraj)
	}

	b.WriteString("\n\nRespond with strict JSON only: ")
	b.WriteString(`{"user_state": "...", "user_state_confidence": 0.0, "salient_items": [], "anomalies": [], "pending_thoughts": [], "disposition": "...", "disposition_reason": "...", "mood": {"valence": 0.0, "arousal": 0.0, "confidence": 0.0}, "synthesis": "..."}`)
	b.WriteString("\nuser_state must be one of: deep_work, light_work, idle, away.")
	b.WriteString(" disposition must be one of: idle, observe, journal, maintain, surface, interrupt.")
	b.WriteString(" anomaly severity must be one of: interesting, notable, concerning, urgent.")
	return b.String()
}

func timeSummary(tc types.TimeContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "local_hour=%d day_of_week=%s", tc.LocalHour, tc.DayOfWeek)
	if tc.IsWeekend {
		b.WriteString(" weekend")
	}
	if tc.IsDeepNight {
		b.WriteString(" deep_night")
	} else if tc.IsLateNight {
		b.WriteString(" late_night")
	}
	if tc.ApproxWorkHours {
		b.WriteString(" work_hours")
	}
	return b.String()
}

func systemSummary(p types.PresenceState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cpu_percent=%.1f memory_percent=%.1f", p.SystemLoad.CPUPercent, p.SystemLoad.MemoryPercent)
	if len(p.ActiveProcesses) > 0 {
		b.WriteString(" active_processes=[")
		for i, proc := range p.ActiveProcesses {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(proc.Name + ":" + string(proc.Category))
		}
		b.WriteString("]")
	}
	return b.String()
}

func presenceSummary(p types.PresenceState) string {
	return fmt.Sprintf("user_idle_seconds=%d session_duration=%s", p.UserIdleSeconds, p.SessionDuration)
}
