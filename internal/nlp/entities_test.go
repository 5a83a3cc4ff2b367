package nlp

import "testing"

func TestExtract_EmptyText(t *testing.T) {
	if got := Extract(""); got != nil {
		t.Errorf("Extract(\"\") = %v, want nil", got)
	}
	if got := Extract("   "); got != nil {
		t.Errorf("Extract(whitespace) = %v, want nil", got)
	}
}

func TestExtract_DeduplicatesRepeatedEntities(t *testing.T) {
	entities := Extract("Alice met Alice again near the office.")
	seen := make(map[string]int)
	for _, e := range entities {
		seen[e.Text]++
	}
	for name, count := range seen {
		if count > 1 {
			t.Errorf("entity %q appeared %d times, expected dedup to 1", name, count)
		}
	}
}

func TestNames_MatchesExtractLength(t *testing.T) {
	text := "Microsoft announced a new product in Seattle."
	if len(Names(text)) != len(Extract(text)) {
		t.Error("Names and Extract should return parallel-length results")
	}
}
