package memory

import (
	"context"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/types"
)

// KVBackend is the baseline memory design: a flat key-value table with no
// ranking or retrieval model. It is always registered under DefaultDesignID
// so a fresh install always has exactly one active design.
type KVBackend struct {
	store *store.Store
}

// NewKVBackend wraps a Store's working_memory_kv1 table as a Backend.
func NewKVBackend(s *store.Store) *KVBackend {
	return &KVBackend{store: s}
}

func (b *KVBackend) Get(ctx context.Context, key string) (string, bool, error) {
	entry, ok, err := b.store.GetWorkingMemory(key)
	if err != nil {
		return "", false, err
	}
	return entry.Value, ok, nil
}

func (b *KVBackend) Put(ctx context.Context, key, value string) error {
	return b.store.PutWorkingMemory(key, value)
}

func (b *KVBackend) Delete(ctx context.Context, key string) error {
	return b.store.DeleteWorkingMemory(key)
}

func (b *KVBackend) IterAll(ctx context.Context) ([]types.WorkingMemoryEntry, error) {
	entries, err := b.store.AllWorkingMemory()
	if err != nil {
		return nil, err
	}
	sortEntriesByKey(entries)
	return entries, nil
}

func (b *KVBackend) AsContextBlob(ctx context.Context, budget int) (string, error) {
	if budget <= 0 {
		return "", apperr.Wrap(apperr.Validation, "context blob budget must be positive, got %d", budget)
	}
	entries, err := b.IterAll(ctx)
	if err != nil {
		return "", err
	}
	return renderBudgeted(entries, budget), nil
}
