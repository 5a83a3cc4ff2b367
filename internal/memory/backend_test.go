package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MLTQ/Ponderer/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ponderer.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVBackend_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	b := NewKVBackend(newTestStore(t))

	if err := b.Put(ctx, "favorite_color", "teal"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	v, ok, err := b.Get(ctx, "favorite_color")
	if err != nil || !ok || v != "teal" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}

	if err := b.Delete(ctx, "favorite_color"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "favorite_color"); ok {
		t.Error("expected key to be gone after delete")
	}
}

func TestKVBackend_AsContextBlobRespectsBudget(t *testing.T) {
	ctx := context.Background()
	b := NewKVBackend(newTestStore(t))
	b.Put(ctx, "a", "aaaaaaaaaa")
	b.Put(ctx, "b", "bbbbbbbbbb")

	blob, err := b.AsContextBlob(ctx, 5)
	if err != nil {
		t.Fatalf("AsContextBlob failed: %v", err)
	}
	if len(blob) > 5 {
		t.Errorf("blob length = %d, want <= 5", len(blob))
	}

	if _, err := b.AsContextBlob(ctx, 0); err == nil {
		t.Error("expected error for non-positive budget")
	}
}

func TestFTSBackend_RanksByQueryOverlap(t *testing.T) {
	ctx := context.Background()
	kv := NewKVBackend(newTestStore(t))
	kv.Put(ctx, "project_kitchen", "renovating the kitchen with oak cabinets")
	kv.Put(ctx, "project_garden", "planting tomatoes in spring")

	fts := NewFTSBackend(kv).WithQuery("kitchen cabinets")
	blob, err := fts.AsContextBlob(ctx, 500)
	if err != nil {
		t.Fatalf("AsContextBlob failed: %v", err)
	}
	kitchenIdx := indexOf(blob, "project_kitchen")
	gardenIdx := indexOf(blob, "project_garden")
	if kitchenIdx < 0 {
		t.Fatal("expected matching entry to appear in blob")
	}
	if gardenIdx >= 0 && gardenIdx < kitchenIdx {
		t.Error("expected higher-scoring entry to rank before non-matching entry")
	}
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestEpisodicBackend_AppendsRatherThanOverwrites(t *testing.T) {
	ctx := context.Background()
	b := NewEpisodicBackend(newTestStore(t))

	if err := b.Put(ctx, "mood", "content"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := b.Put(ctx, "mood", "anxious"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	history, err := b.History(ctx, "mood")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History length = %d, want 2", len(history))
	}

	latest, ok, err := b.Get(ctx, "mood")
	if err != nil || !ok || latest != "anxious" {
		t.Fatalf("Get = %q, %v, %v, want anxious", latest, ok, err)
	}

	all, err := b.IterAll(ctx)
	if err != nil {
		t.Fatalf("IterAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("IterAll length = %d, want 1 (one logical key)", len(all))
	}
}

func TestRegistry_ResolveUnknownDesign(t *testing.T) {
	r := NewRegistry(NewKVBackend(newTestStore(t)))
	if _, err := r.Resolve("nonexistent_design"); err == nil {
		t.Error("expected error resolving unknown design id")
	}
	if _, err := r.Resolve(DefaultDesignID); err != nil {
		t.Errorf("Resolve(DefaultDesignID) failed: %v", err)
	}
}
