package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/MLTQ/Ponderer/internal/apperr"
)

// FTSBackend adds relevance ranking on top of the flat kv store: entries
// are still stored through KVBackend, but AsContextBlob accepts an optional
// query (via WithQuery) and orders entries by term-overlap score instead of
// key order. There is no external search engine dependency here — this is
// a deliberately simple bag-of-words ranking, good enough to demonstrate a
// second memory design without pulling in a document index.
type FTSBackend struct {
	*KVBackend
	query string
}

// NewFTSBackend wraps an existing KVBackend, reusing its storage.
func NewFTSBackend(kv *KVBackend) *FTSBackend {
	return &FTSBackend{KVBackend: kv}
}

// WithQuery returns a copy of the backend that ranks AsContextBlob entries
// against query instead of sorting by key. Memory designs are otherwise
// stateless, so this is cheap to call per orientation cycle.
func (b *FTSBackend) WithQuery(query string) *FTSBackend {
	return &FTSBackend{KVBackend: b.KVBackend, query: query}
}

type scoredEntry struct {
	key, value string
	score      int
}

func (b *FTSBackend) AsContextBlob(ctx context.Context, budget int) (string, error) {
	if budget <= 0 {
		return "", apperr.Wrap(apperr.Validation, "context blob budget must be positive, got %d", budget)
	}
	entries, err := b.IterAll(ctx)
	if err != nil {
		return "", err
	}
	if b.query == "" {
		return renderBudgeted(entries, budget), nil
	}

	terms := strings.Fields(strings.ToLower(b.query))
	scored := make([]scoredEntry, 0, len(entries))
	for _, e := range entries {
		haystack := strings.ToLower(e.Key + " " + e.Value)
		score := 0
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				score++
			}
		}
		scored = append(scored, scoredEntry{key: e.Key, value: e.Value, score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	var b2 strings.Builder
	for _, e := range scored {
		if e.score == 0 {
			continue
		}
		line := e.key + ": " + e.value + "\n"
		if b2.Len()+len(line) > budget {
			remaining := budget - b2.Len()
			if remaining > 0 {
				b2.WriteString(line[:remaining])
			}
			break
		}
		b2.WriteString(line)
	}
	return b2.String(), nil
}
