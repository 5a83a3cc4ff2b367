// Package journal implements the Journal Engine (§4.6): a rate-limited,
// LLM-backed generator of typed, append-only inner-monologue entries. The
// engine never writes directly — MaybeGenerateEntry returns a candidate
// entry (or nil) and leaves persistence and rate-limit enforcement to the
// caller, which always goes through internal/store so the two concerns
// never drift out of sync.
package journal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MLTQ/Ponderer/internal/llm"
	"github.com/MLTQ/Ponderer/internal/logging"
	"github.com/MLTQ/Ponderer/internal/types"
)

const (
	// DefaultMinInterval is journal_min_interval_secs's default (§6.3).
	DefaultMinInterval = 300 * time.Second
	// DefaultMaxContentLength bounds a single entry's content, per §4.6's
	// "content length <= configured bound" validation rule.
	DefaultMaxContentLength = 2000
	// generateDeadline matches §5's "journal ≤ 15s" per-profile LLM deadline.
	generateDeadline = 15 * time.Second
)

// Engine builds prompts, calls the LLM, and validates structured journal
// responses.
type Engine struct {
	gen               llm.Generator
	maxContentLength  int
}

// NewEngine constructs an Engine backed by gen.
func NewEngine(gen llm.Generator) *Engine {
	return &Engine{gen: gen, maxContentLength: DefaultMaxContentLength}
}

// journalResponse is the strict JSON shape the LLM must return, per §6.6.
type journalResponse struct {
	EntryType  string   `json:"entry_type"`
	Content    string   `json:"content"`
	RelatesTo  []string `json:"relates_to"`
	Skip       bool     `json:"skip"`
	SkipReason string   `json:"skip_reason"`
}

// MaybeGenerateEntry builds a prompt from the current orientation, recent
// entries, and active concerns, and asks the LLM whether to write a new
// journal entry. It returns (nil, nil) on a legitimate skip (explicit
// skip=true, or an invalid/unparseable response — both are treated as
// skip per §4.6's validation rule, never surfaced as an error to the
// scheduler).
func (e *Engine) MaybeGenerateEntry(ctx context.Context, orientation types.Orientation, recent []types.JournalEntry, active []types.Concern) (*types.JournalEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, generateDeadline)
	defer cancel()

	prompt := buildPrompt(orientation, recent, active)
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		logging.Debug("journal", "generate failed, treating as skip: %v", err)
		return nil, nil
	}

	resp, ok := parseResponse(raw)
	if !ok {
		logging.Debug("journal", "unparseable response, treating as skip: %s", logging.Truncate(raw, 200))
		return nil, nil
	}
	if resp.Skip {
		logging.Debug("journal", "skip: %s", resp.SkipReason)
		return nil, nil
	}

	entryType, ok := types.EntryTypeFromDBStr(resp.EntryType)
	if !ok {
		logging.Debug("journal", "invalid entry_type %q, treating as skip", resp.EntryType)
		return nil, nil
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" || len(content) > e.maxContentLength {
		logging.Debug("journal", "content failed validation (len=%d), treating as skip", len(content))
		return nil, nil
	}
	if !relatesToExist(resp.RelatesTo, active) {
		logging.Debug("journal", "relates_to references unknown concern, treating as skip")
		return nil, nil
	}

	now := time.Now()
	entry := &types.JournalEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		EntryType: entryType,
		Content:   content,
		Context: types.JournalContext{
			Trigger:   orientation.DispositionReason,
			UserState: orientation.UserState.AsDBStr(),
			TimeOfDay: timeOfDayLabel(types.NewTimeContext(now)),
		},
		RelatedConcerns: resp.RelatesTo,
	}
	if orientation.Mood.Confidence > 0 {
		mood := orientation.Mood
		entry.MoodAtTime = &mood
	}
	return entry, nil
}

func relatesToExist(ids []string, active []types.Concern) bool {
	if len(ids) == 0 {
		return true
	}
	known := make(map[string]bool, len(active))
	for _, c := range active {
		known[c.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return false
		}
	}
	return true
}

func timeOfDayLabel(tc types.TimeContext) string {
	switch {
	case tc.IsDeepNight:
		return "deep_night"
	case tc.IsLateNight:
		return "late_night"
	case tc.ApproxWorkHours:
		return "work_hours"
	default:
		return "off_hours"
	}
}

func parseResponse(raw string) (journalResponse, bool) {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return journalResponse{}, false
	}
	var resp journalResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return journalResponse{}, false
	}
	return resp, true
}

func buildPrompt(o types.Orientation, recent []types.JournalEntry, active []types.Concern) string {
	var b strings.Builder
	b.WriteString("You maintain a private, append-only inner journal. Decide whether to write a new entry right now.\n\n")
	b.WriteString("## Orientation synthesis\n")
	b.WriteString(o.RawSynthesis)
	b.WriteString("\n\n## Disposition reason\n")
	b.WriteString(o.DispositionReason)

	if len(o.PendingThoughts) > 0 {
		b.WriteString("\n\n## Pending thoughts\n")
		for _, t := range o.PendingThoughts {
			b.WriteString("- " + t.Content + "\n")
		}
	}
	if len(o.Anomalies) > 0 {
		b.WriteString("\n## Anomalies\n")
		for _, a := range o.Anomalies {
			b.WriteString("- [" + a.Severity.AsDBStr() + "] " + a.Description + "\n")
		}
	}

	b.WriteString("\n## Recent entries (most recent last)\n")
	limit := 5
	if len(recent) < limit {
		limit = len(recent)
	}
	for i := limit - 1; i >= 0; i-- {
		e := recent[i]
		b.WriteString("- [" + e.EntryType.AsDBStr() + "] " + e.Content + "\n")
	}

	if len(active) > 0 {
		b.WriteString("\n## Active concerns\n")
		for _, c := range active {
			b.WriteString("- (" + c.ID + ") " + c.Summary + "\n")
		}
	}

	b.WriteString("\nRespond with strict JSON only: ")
	b.WriteString(`{"entry_type": "...", "content": "...", "relates_to": ["concern_id", ...], "skip": false, "skip_reason": ""}`)
	b.WriteString("\nentry_type must be one of: observation, reflection, realization, intention, question, memory, gratitude, frustration.")
	b.WriteString(" Set skip=true with no other fields required if nothing is worth recording right now.")
	return b.String()
}

// RateLimitOK reports whether enough time has passed since lastEntry for a
// new entry to be written, per journal_min_interval_secs (§4.6, §8
// invariant 6). hadPrevious distinguishes "never written" (always OK) from
// "written at the zero time" (which would otherwise look stale).
func RateLimitOK(hadPrevious bool, lastEntry time.Time, now time.Time, minInterval time.Duration) bool {
	if !hadPrevious {
		return true
	}
	return now.Sub(lastEntry) >= minInterval
}
