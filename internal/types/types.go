// Package types holds the shared entity and enum definitions for the Living
// Loop scheduler: presence samples, concerns, journal entries, orientation
// snapshots, and the designator records for the versioned memory backend.
//
// Enums are modeled as tagged variants (Go string types with a closed set of
// constants) rather than bare strings. Each one carries AsDBStr/FromDBStr so
// the persistence boundary has one canonical string form, per the spec's
// note that renaming them is a schema break.
package types

import "time"

// Salience is the decay tier assigned to a Concern.
type Salience string

const (
	SalienceActive     Salience = "active"
	SalienceMonitoring Salience = "monitoring"
	SalienceBackground Salience = "background"
	SalienceDormant    Salience = "dormant"
)

func (s Salience) AsDBStr() string { return string(s) }

func SalienceFromDBStr(v string) (Salience, bool) {
	switch Salience(v) {
	case SalienceActive, SalienceMonitoring, SalienceBackground, SalienceDormant:
		return Salience(v), true
	}
	return "", false
}

// ConcernType tags why a concern exists.
type ConcernType string

const (
	ConcernCollaborativeProject ConcernType = "collaborative_project"
	ConcernHouseholdAwareness   ConcernType = "household_awareness"
	ConcernSystemHealth         ConcernType = "system_health"
	ConcernPersonalInterest     ConcernType = "personal_interest"
	ConcernReminder             ConcernType = "reminder"
	ConcernOngoingConversation  ConcernType = "ongoing_conversation"
)

func (c ConcernType) AsDBStr() string { return string(c) }

func ConcernTypeFromDBStr(v string) (ConcernType, bool) {
	switch ConcernType(v) {
	case ConcernCollaborativeProject, ConcernHouseholdAwareness, ConcernSystemHealth,
		ConcernPersonalInterest, ConcernReminder, ConcernOngoingConversation:
		return ConcernType(v), true
	}
	return "", false
}

// ConcernContext is the origin note plus an append-only update history.
type ConcernContext struct {
	Origin  string        `json:"origin"`
	Updates []ContextNote `json:"updates"`
}

// ContextNote is one entry in a Concern's update history, written on touch.
type ContextNote struct {
	At   time.Time `json:"at"`
	Note string    `json:"note"`
}

// Concern is a long-lived topic, project, or reminder the agent tracks.
type Concern struct {
	ID                string         `json:"id"`
	CreatedAt         time.Time      `json:"created_at"`
	LastTouched       time.Time      `json:"last_touched"`
	Summary           string         `json:"summary"`
	ConcernType       ConcernType    `json:"concern_type"`
	Salience          Salience       `json:"salience"`
	MyThoughts        string         `json:"my_thoughts"`
	RelatedMemoryKeys []string       `json:"related_memory_keys"`
	Context           ConcernContext `json:"context"`
}

// EntryType identifies the kind of a JournalEntry.
type EntryType string

const (
	EntryObservation EntryType = "observation"
	EntryReflection  EntryType = "reflection"
	EntryRealization EntryType = "realization"
	EntryIntention   EntryType = "intention"
	EntryQuestion    EntryType = "question"
	EntryMemory      EntryType = "memory"
	EntryGratitude   EntryType = "gratitude"
	EntryFrustration EntryType = "frustration"
)

func (e EntryType) AsDBStr() string { return string(e) }

func EntryTypeFromDBStr(v string) (EntryType, bool) {
	switch EntryType(v) {
	case EntryObservation, EntryReflection, EntryRealization, EntryIntention,
		EntryQuestion, EntryMemory, EntryGratitude, EntryFrustration:
		return EntryType(v), true
	}
	return "", false
}

// JournalContext labels what prompted a journal entry.
type JournalContext struct {
	Trigger   string `json:"trigger"`
	UserState string `json:"user_state"`
	TimeOfDay string `json:"time_of_day"`
}

// JournalEntry is one immutable, append-only entry in the agent's private
// inner-life log.
type JournalEntry struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	EntryType       EntryType      `json:"entry_type"`
	Content         string         `json:"content"`
	Context         JournalContext `json:"context"`
	RelatedConcerns []string       `json:"related_concerns"`
	MoodAtTime      *Mood          `json:"mood_at_time,omitempty"`
}

// UserState is the orientation engine's classification of what the user is
// currently doing, with a confidence score.
type UserState string

const (
	UserDeepWork  UserState = "deep_work"
	UserLightWork UserState = "light_work"
	UserIdle      UserState = "idle"
	UserAway      UserState = "away"
)

func (u UserState) AsDBStr() string { return string(u) }

func UserStateFromDBStr(v string) (UserState, bool) {
	switch UserState(v) {
	case UserDeepWork, UserLightWork, UserIdle, UserAway:
		return UserState(v), true
	}
	return "", false
}

// Severity ranks an anomaly's urgency.
type Severity string

const (
	SeverityInteresting Severity = "interesting"
	SeverityNotable     Severity = "notable"
	SeverityConcerning  Severity = "concerning"
	SeverityUrgent      Severity = "urgent"
)

func (s Severity) AsDBStr() string { return string(s) }

func SeverityFromDBStr(v string) (Severity, bool) {
	switch Severity(v) {
	case SeverityInteresting, SeverityNotable, SeverityConcerning, SeverityUrgent:
		return Severity(v), true
	}
	return "", false
}

// Disposition is the typed action selected for a scheduler tick. It is the
// only vocabulary the Core Loop's dispatch table understands; no other
// string is a valid disposition.
type Disposition string

const (
	DispositionIdle      Disposition = "idle"
	DispositionObserve   Disposition = "observe"
	DispositionJournal   Disposition = "journal"
	DispositionMaintain  Disposition = "maintain"
	DispositionSurface   Disposition = "surface"
	DispositionInterrupt Disposition = "interrupt"
)

func (d Disposition) AsDBStr() string { return string(d) }

// DispositionFromDBStr parses a persisted/LLM-supplied disposition string.
// Anything outside the enumerated six is rejected.
func DispositionFromDBStr(v string) (Disposition, bool) {
	switch Disposition(v) {
	case DispositionIdle, DispositionObserve, DispositionJournal,
		DispositionMaintain, DispositionSurface, DispositionInterrupt:
		return Disposition(v), true
	}
	return "", false
}

// Mood is the orientation engine's estimate of affective state.
type Mood struct {
	Valence    float64 `json:"valence"`    // [-1, 1]
	Arousal    float64 `json:"arousal"`    // [0, 1]
	Confidence float64 `json:"confidence"` // [0, 1]
}

// Anomaly is a single notable deviation surfaced by the orientation engine.
type Anomaly struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// SalienceItem is one entry in an Orientation's salience_map.
type SalienceItem struct {
	ConcernID string  `json:"concern_id"`
	Summary   string  `json:"summary"`
	Relevance float64 `json:"relevance"`
}

// PendingThought is a candidate idea the orientation engine produced that
// has not yet been surfaced to, or dismissed by, the user.
type PendingThought struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Context     string     `json:"context"`
	Priority    float64    `json:"priority"` // [0, 1]
	RelatesTo   []string   `json:"relates_to"`
	CreatedAt   time.Time  `json:"created_at"`
	SurfacedAt  *time.Time `json:"surfaced_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
}

// Orientation is the fused situational snapshot produced once per scheduler
// tick by the Orientation Engine.
type Orientation struct {
	ID                int64            `json:"id"`
	UserState         UserState        `json:"user_state"`
	UserStateConf     float64          `json:"user_state_confidence"`
	SalienceMap       []SalienceItem   `json:"salience_map"`
	Anomalies         []Anomaly        `json:"anomalies"`
	PendingThoughts   []PendingThought `json:"pending_thoughts"`
	Disposition       Disposition      `json:"disposition"`
	DispositionReason string           `json:"disposition_reason"`
	Mood              Mood             `json:"mood_estimate"`
	RawSynthesis      string           `json:"raw_synthesis"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// TimeContext is derived purely from the local clock; it has no side
// effects and no hidden state.
type TimeContext struct {
	LocalHour       int
	DayOfWeek       time.Weekday
	IsWeekend       bool
	IsLateNight     bool // 23:00-06:00
	IsDeepNight     bool // 02:00-05:00
	ApproxWorkHours bool
}

// NewTimeContext derives a TimeContext from a concrete instant in local time.
func NewTimeContext(now time.Time) TimeContext {
	local := now.Local()
	hour := local.Hour()
	dow := local.Weekday()
	isWeekend := dow == time.Saturday || dow == time.Sunday
	isLateNight := hour >= 23 || hour < 6
	isDeepNight := hour >= 2 && hour < 5
	approxWorkHours := !isWeekend && hour >= 9 && hour < 18
	return TimeContext{
		LocalHour:       hour,
		DayOfWeek:       dow,
		IsWeekend:       isWeekend,
		IsLateNight:     isLateNight,
		IsDeepNight:     isDeepNight,
		ApproxWorkHours: approxWorkHours,
	}
}

// ProcessCategory classifies an InterestingProcess for presence sampling.
type ProcessCategory string

const (
	CategoryDevelopment   ProcessCategory = "development"
	CategoryCreative      ProcessCategory = "creative"
	CategoryResearch      ProcessCategory = "research"
	CategoryCommunication ProcessCategory = "communication"
	CategoryMedia         ProcessCategory = "media"
	CategorySystem        ProcessCategory = "system"
)

// InterestingProcess is one running process the presence sampler judged
// worth reporting.
type InterestingProcess struct {
	Name       string          `json:"name"`
	Category   ProcessCategory `json:"category"`
	CPUPercent float64         `json:"cpu_percent"`
}

// SystemLoad is an instantaneous read of machine resource usage.
type SystemLoad struct {
	CPUPercent     float64  `json:"cpu_percent"`
	MemoryPercent  float64  `json:"memory_percent"`
	GPUTempCelsius *float64 `json:"gpu_temp_celsius,omitempty"`
	GPUUtilPercent *float64 `json:"gpu_util_percent,omitempty"`
}

// PresenceState is an ephemeral, never-persisted sample of the environment.
type PresenceState struct {
	UserIdleSeconds      uint64               `json:"user_idle_seconds"`
	TimeSinceInteraction time.Duration        `json:"time_since_interaction"`
	SessionDuration      time.Duration        `json:"session_duration"`
	TimeContext          TimeContext          `json:"time_context"`
	SystemLoad           SystemLoad           `json:"system_load"`
	ActiveProcesses      []InterestingProcess `json:"active_processes"`
	SampledAt            time.Time            `json:"sampled_at"`
}

// WorkingMemoryEntry is a single key/value row of working memory.
type WorkingMemoryEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PersonaTraits maps a trait dimension name to a score in [0, 1].
type PersonaTraits map[string]float64

// PersonaSnapshot is one append-only record of the agent's system prompt and
// personality trajectory.
type PersonaSnapshot struct {
	ID         int64         `json:"id"`
	Prompt     string        `json:"prompt"`
	Trajectory string        `json:"trajectory"`
	Traits     PersonaTraits `json:"traits"`
	Trigger    string        `json:"trigger"`
	Timestamp  time.Time     `json:"timestamp"`
}

// MemoryDesignVersion is the process-wide active memory backend designator.
type MemoryDesignVersion struct {
	MemoryDesignID      string `json:"memory_design_id"`
	MemorySchemaVersion int    `json:"memory_schema_version"`
}

// MemoryEvalReport is the audit record produced by an offline replay
// evaluation of a candidate memory design.
type MemoryEvalReport struct {
	ID         int64              `json:"id"`
	DesignID   string             `json:"design_id"`
	SchemaVer  int                `json:"schema_version"`
	Metrics    map[string]float64 `json:"metrics"`
	SampleSize int                `json:"sample_size"`
	RanAt      time.Time          `json:"ran_at"`
}

// PromotionDecision records a policy-gated transition of the active memory
// design. It always carries a non-null rollback target.
type PromotionDecision struct {
	ID                    int64     `json:"id"`
	FromDesignID          string    `json:"from_design_id"`
	FromSchemaVersion     int       `json:"from_schema_version"`
	ToDesignID            string    `json:"to_design_id"`
	ToSchemaVersion       int       `json:"to_schema_version"`
	Approved              bool      `json:"approved"`
	Reason                string    `json:"reason"`
	RollbackDesignID      string    `json:"rollback_design_id"`
	RollbackSchemaVersion int       `json:"rollback_schema_version"`
	DecidedAt             time.Time `json:"decided_at"`
}

// DesignArchiveEntry records a memory design variant that has existed, win
// or lose, for audit purposes. Archive rows are never deleted.
type DesignArchiveEntry struct {
	ID        int64     `json:"id"`
	DesignID  string    `json:"design_id"`
	SchemaVer int       `json:"schema_version"`
	CreatedAt time.Time `json:"created_at"`
	Note      string    `json:"note"`
}

// MaintenanceReport enumerates what a dream-cycle concerns maintenance pass
// did.
type MaintenanceReport struct {
	Demoted      []string `json:"demoted"`
	Archived     []string `json:"archived"`
	Consolidated []string `json:"consolidated"`
}

// PrivateMessage is one inbound message on the engaged (PrivateChat) path,
// together with the agent's reply once generated.
type PrivateMessage struct {
	ID        int64     `json:"id"`
	ChannelID string    `json:"channel_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Reply     *string   `json:"reply,omitempty"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}
