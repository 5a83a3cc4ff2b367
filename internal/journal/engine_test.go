package journal

import (
	"context"
	"testing"
	"time"

	"github.com/MLTQ/Ponderer/internal/types"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func TestEngine_SkipsOnExplicitSkip(t *testing.T) {
	e := NewEngine(fakeGenerator{response: `{"skip": true, "skip_reason": "nothing notable"}`})
	entry, err := e.MaybeGenerateEntry(context.Background(), types.Orientation{}, nil, nil)
	if err != nil {
		t.Fatalf("MaybeGenerateEntry failed: %v", err)
	}
	if entry != nil {
		t.Error("expected nil entry on explicit skip")
	}
}

func TestEngine_SkipsOnUnparseableResponse(t *testing.T) {
	e := NewEngine(fakeGenerator{response: "not json at all"})
	entry, err := e.MaybeGenerateEntry(context.Background(), types.Orientation{}, nil, nil)
	if err != nil {
		t.Fatalf("MaybeGenerateEntry failed: %v", err)
	}
	if entry != nil {
		t.Error("expected nil entry on unparseable response")
	}
}

func TestEngine_SkipsOnInvalidEntryType(t *testing.T) {
	e := NewEngine(fakeGenerator{response: `{"entry_type": "not_a_real_type", "content": "hello"}`})
	entry, err := e.MaybeGenerateEntry(context.Background(), types.Orientation{}, nil, nil)
	if err != nil {
		t.Fatalf("MaybeGenerateEntry failed: %v", err)
	}
	if entry != nil {
		t.Error("expected nil entry on invalid entry_type")
	}
}

func TestEngine_SkipsOnUnknownRelatesTo(t *testing.T) {
	e := NewEngine(fakeGenerator{response: `{"entry_type": "observation", "content": "quiet evening", "relates_to": ["nonexistent"]}`})
	entry, err := e.MaybeGenerateEntry(context.Background(), types.Orientation{}, nil, nil)
	if err != nil {
		t.Fatalf("MaybeGenerateEntry failed: %v", err)
	}
	if entry != nil {
		t.Error("expected nil entry when relates_to references an unknown concern")
	}
}

func TestEngine_ProducesValidEntry(t *testing.T) {
	active := []types.Concern{{ID: "c1", Summary: "garden project"}}
	e := NewEngine(fakeGenerator{response: `{"entry_type": "observation", "content": "the garden is coming along nicely", "relates_to": ["c1"]}`})
	entry, err := e.MaybeGenerateEntry(context.Background(), types.Orientation{UserState: types.UserIdle}, nil, active)
	if err != nil {
		t.Fatalf("MaybeGenerateEntry failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected a valid entry, got nil")
	}
	if entry.EntryType != types.EntryObservation {
		t.Errorf("EntryType = %v, want observation", entry.EntryType)
	}
	if len(entry.RelatedConcerns) != 1 || entry.RelatedConcerns[0] != "c1" {
		t.Errorf("RelatedConcerns = %v, want [c1]", entry.RelatedConcerns)
	}
}

func TestRateLimitOK(t *testing.T) {
	now := time.Now()
	if !RateLimitOK(false, time.Time{}, now, DefaultMinInterval) {
		t.Error("expected no previous entry to always allow")
	}
	if RateLimitOK(true, now.Add(-10*time.Second), now, DefaultMinInterval) {
		t.Error("expected recent entry to block within the interval")
	}
	if !RateLimitOK(true, now.Add(-DefaultMinInterval), now, DefaultMinInterval) {
		t.Error("expected exactly-at-interval to allow (inclusive boundary)")
	}
}
