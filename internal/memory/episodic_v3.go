package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/types"
)

// episodeSeparator joins a logical key to the content-hash suffix that
// makes each Put append a new episode instead of overwriting the previous
// one. It must never appear in a caller-supplied key.
const episodeSeparator = "@@"

// EpisodicBackend never overwrites: each Put under a given logical key adds
// a new dated episode rather than replacing the prior value, using
// ContentHash to dedup identical repeats of the same fact. Get and IterAll
// only ever surface the most recent episode per logical key, so the
// Backend contract ("current value for a key") still holds; the full
// history is reachable through History.
type EpisodicBackend struct {
	store *store.Store
}

// NewEpisodicBackend wraps a Store as an append-only memory design.
func NewEpisodicBackend(s *store.Store) *EpisodicBackend {
	return &EpisodicBackend{store: s}
}

func physicalKey(logicalKey, value string) string {
	return logicalKey + episodeSeparator + ContentHash(value)
}

func splitLogicalKey(physical string) (logical string, ok bool) {
	idx := strings.LastIndex(physical, episodeSeparator)
	if idx < 0 {
		return "", false
	}
	return physical[:idx], true
}

func (b *EpisodicBackend) Put(ctx context.Context, key, value string) error {
	return b.store.PutWorkingMemory(physicalKey(key, value), value)
}

func (b *EpisodicBackend) Get(ctx context.Context, key string) (string, bool, error) {
	entries, err := b.store.AllWorkingMemory()
	if err != nil {
		return "", false, err
	}
	var latest *types.WorkingMemoryEntry
	for i := range entries {
		logical, ok := splitLogicalKey(entries[i].Key)
		if !ok || logical != key {
			continue
		}
		if latest == nil || entries[i].UpdatedAt.After(latest.UpdatedAt) {
			latest = &entries[i]
		}
	}
	if latest == nil {
		return "", false, nil
	}
	return latest.Value, true, nil
}

// History returns every episode ever recorded for key, oldest first.
func (b *EpisodicBackend) History(ctx context.Context, key string) ([]types.WorkingMemoryEntry, error) {
	entries, err := b.store.AllWorkingMemory()
	if err != nil {
		return nil, err
	}
	var out []types.WorkingMemoryEntry
	for _, e := range entries {
		logical, ok := splitLogicalKey(e.Key)
		if ok && logical == key {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (b *EpisodicBackend) Delete(ctx context.Context, key string) error {
	entries, err := b.store.AllWorkingMemory()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if logical, ok := splitLogicalKey(e.Key); ok && logical == key {
			if err := b.store.DeleteWorkingMemory(e.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *EpisodicBackend) IterAll(ctx context.Context) ([]types.WorkingMemoryEntry, error) {
	entries, err := b.store.AllWorkingMemory()
	if err != nil {
		return nil, err
	}
	latestByKey := make(map[string]types.WorkingMemoryEntry)
	for _, e := range entries {
		logical, ok := splitLogicalKey(e.Key)
		if !ok {
			continue
		}
		if existing, seen := latestByKey[logical]; !seen || e.UpdatedAt.After(existing.UpdatedAt) {
			latestByKey[logical] = types.WorkingMemoryEntry{Key: logical, Value: e.Value, UpdatedAt: e.UpdatedAt}
		}
	}
	out := make([]types.WorkingMemoryEntry, 0, len(latestByKey))
	for _, e := range latestByKey {
		out = append(out, e)
	}
	sortEntriesByKey(out)
	return out, nil
}

func (b *EpisodicBackend) AsContextBlob(ctx context.Context, budget int) (string, error) {
	if budget <= 0 {
		return "", apperr.Wrap(apperr.Validation, "context blob budget must be positive, got %d", budget)
	}
	entries, err := b.IterAll(ctx)
	if err != nil {
		return "", err
	}
	return renderBudgeted(entries, budget), nil
}
