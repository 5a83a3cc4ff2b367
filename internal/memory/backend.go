// Package memory implements the versioned Memory Backend (§4.3): a small
// capability set — get/put/delete/iterate/context-blob — behind a stable
// interface, with multiple concrete implementations registered under a
// memory_design_id. Only one implementation is active at a time;
// switching is a migration handled by internal/memoryeval, never an
// in-place schema change.
package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/types"
)

// Backend is the capability set every memory design implements.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	IterAll(ctx context.Context) ([]types.WorkingMemoryEntry, error)
	// AsContextBlob renders up to budget characters of working memory as a
	// single string suitable for inclusion in an LLM prompt.
	AsContextBlob(ctx context.Context, budget int) (string, error)
}

// DesignID returns the stable identifier a Backend implementation is
// registered under, e.g. "kv_v1".
type DesignID = string

// ContentHash returns a short, stable key for deduplicating working-memory
// entries by content, the same blake3-based technique
// internal/graph/episodes.go uses for short IDs.
func ContentHash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex(sum[:5])
}

func hex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0x0f]
	}
	return string(out)
}

// Registry maps a memory_design_id to its Backend implementation. It does
// not read the store's active designator, and nothing at startup resolves
// the live Backend from it; callers look a design up by id.
type Registry struct {
	backends map[DesignID]Backend
}

// NewRegistry builds a registry with the default kv_v1 implementation
// always present, plus any additional variants a caller wires in.
func NewRegistry(defaultBackend Backend) *Registry {
	r := &Registry{backends: make(map[DesignID]Backend)}
	r.Register(DefaultDesignID, defaultBackend)
	return r
}

// Register adds or replaces a named backend implementation.
func (r *Registry) Register(id DesignID, b Backend) {
	r.backends[id] = b
}

// Resolve returns the Backend registered for id, or a CapabilityDenied-free
// Validation error if id has never been registered — a design the registry
// doesn't know about cannot be activated.
func (r *Registry) Resolve(id DesignID) (Backend, error) {
	b, ok := r.backends[id]
	if !ok {
		return nil, apperr.Wrap(apperr.Validation, "unknown memory design %q", id)
	}
	return b, nil
}

// DefaultDesignID is the built-in, always-registered key-value design.
const DefaultDesignID DesignID = "kv_v1"

// sortEntriesByKey is shared by every in-memory-sorted AsContextBlob
// implementation so prompt output is deterministic across runs.
func sortEntriesByKey(entries []types.WorkingMemoryEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}

// renderBudgeted concatenates entries as "key: value" lines until the
// character budget is exhausted, truncating the final line rather than
// dropping it entirely so a tight budget still surfaces a partial fact.
func renderBudgeted(entries []types.WorkingMemoryEntry, budget int) string {
	var b strings.Builder
	for _, e := range entries {
		line := e.Key + ": " + e.Value + "\n"
		if b.Len()+len(line) > budget {
			remaining := budget - b.Len()
			if remaining > 0 {
				b.WriteString(line[:remaining])
			}
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
