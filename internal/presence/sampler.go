// Package presence samples the local machine's instantaneous state: idle
// time, system load, time-of-day context, and a short list of interesting
// running processes. Sampling must be cheap and non-blocking — no syscall
// here should cost more than a few milliseconds — so CPU load is computed
// from a cheap delta against the previous sample rather than gopsutil's
// blocking CPUPercent(interval) call, the same technique
// internal/budget/cpuwatcher.go uses to avoid sleeping inside a poll.
package presence

import (
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/MLTQ/Ponderer/internal/logging"
	"github.com/MLTQ/Ponderer/internal/types"
)

// Sampler produces PresenceState snapshots. It is safe for concurrent use.
type Sampler struct {
	mu sync.Mutex

	startedAt      time.Time
	lastInteraction time.Time

	lastCPUTotal float64
	lastCPUAt    time.Time

	maxProcesses int
}

// New creates a Sampler with the interaction clock starting now.
func New() *Sampler {
	now := time.Now()
	return &Sampler{
		startedAt:       now,
		lastInteraction: now,
		maxProcesses:    8,
	}
}

// RecordInteraction resets the interaction clock; call this whenever an
// operator message or other direct signal arrives.
func (s *Sampler) RecordInteraction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastInteraction = time.Now()
}

// Sample produces a PresenceState. It never blocks on a sleep-based
// CPU measurement; the first call after process start reports 0% CPU
// because there is no prior delta to compare against.
func (s *Sampler) Sample() types.PresenceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	load := s.sampleSystemLoad(now)
	procs := s.sampleInterestingProcesses()

	return types.PresenceState{
		UserIdleSeconds:      uint64(now.Sub(s.lastInteraction).Seconds()),
		TimeSinceInteraction: now.Sub(s.lastInteraction),
		SessionDuration:      now.Sub(s.startedAt),
		TimeContext:          types.NewTimeContext(now),
		SystemLoad:           load,
		ActiveProcesses:      procs,
		SampledAt:            now,
	}
}

func (s *Sampler) sampleSystemLoad(now time.Time) types.SystemLoad {
	var load types.SystemLoad

	if vm, err := mem.VirtualMemory(); err == nil {
		load.MemoryPercent = vm.UsedPercent
	} else {
		logging.Debug("presence", "virtual memory read failed: %v", err)
	}

	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		logging.Debug("presence", "cpu times read failed: %v", err)
		return load
	}
	total := times[0]
	busy := total.User + total.System + total.Nice + total.Irq + total.Softirq + total.Steal
	all := busy + total.Idle + total.Iowait

	if !s.lastCPUAt.IsZero() && all > 0 {
		elapsed := now.Sub(s.lastCPUAt).Seconds()
		if elapsed > 0 {
			deltaBusy := busy - s.lastCPUTotal
			// lastCPUTotal tracks busy seconds, not the all-inclusive total,
			// so the delta is already scaled against the elapsed wall clock.
			load.CPUPercent = clampPercent((deltaBusy / elapsed) * 100)
		}
	}
	s.lastCPUTotal = busy
	s.lastCPUAt = now

	return load
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

var processCategoryKeywords = map[types.ProcessCategory][]string{
	types.CategoryDevelopment: {"code", "vim", "nvim", "emacs", "go", "cargo", "node", "python", "docker", "git"},
	types.CategoryCreative:    {"figma", "photoshop", "blender", "gimp", "krita", "ableton"},
	types.CategoryResearch:    {"zotero", "obsidian", "notion", "acrobat"},
	types.CategoryCommunication: {"slack", "discord", "zoom", "teams", "mail", "thunderbird"},
	types.CategoryMedia:       {"spotify", "vlc", "mpv", "netflix"},
}

func categorize(name string) (types.ProcessCategory, bool) {
	lower := strings.ToLower(name)
	for category, keywords := range processCategoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return category, true
			}
		}
	}
	return "", false
}

// sampleInterestingProcesses lists a bounded number of running processes
// that fall into a recognized category, sorted by CPU descending. Processes
// outside the known keyword set are not "uninteresting" — they are simply
// not reported, matching the spec's framing of this as a curated signal
// rather than a full process listing.
func (s *Sampler) sampleInterestingProcesses() []types.InterestingProcess {
	procs, err := process.Processes()
	if err != nil {
		logging.Debug("presence", "process listing failed: %v", err)
		return nil
	}

	var out []types.InterestingProcess
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}
		category, ok := categorize(name)
		if !ok {
			continue
		}
		cpuPct, err := p.CPUPercent()
		if err != nil {
			cpuPct = 0
		}
		out = append(out, types.InterestingProcess{
			Name:       name,
			Category:   category,
			CPUPercent: cpuPct,
		})
	}

	sortByCPUDesc(out)
	if len(out) > s.maxProcesses {
		out = out[:s.maxProcesses]
	}
	return out
}

func sortByCPUDesc(procs []types.InterestingProcess) {
	for i := 1; i < len(procs); i++ {
		for j := i; j > 0 && procs[j].CPUPercent > procs[j-1].CPUPercent; j-- {
			procs[j], procs[j-1] = procs[j-1], procs[j]
		}
	}
}
