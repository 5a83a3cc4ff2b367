// Package nlp provides lightweight named-entity extraction used by the
// Concerns Manager (context-note enrichment on Touch). It is a thin wrapper
// around github.com/tsawler/prose/v3, the same library and entity-label
// mapping memory-service/pkg/extract/prose.go uses, adapted to a simpler
// string-only output since the caller here needs no character offsets or
// graph node types.
package nlp

import (
	"strings"

	"github.com/tsawler/prose/v3"

	"github.com/MLTQ/Ponderer/internal/logging"
)

// EntityType is a coarse category for an extracted named entity.
type EntityType string

const (
	EntityPerson   EntityType = "person"
	EntityOrg      EntityType = "org"
	EntityLocation EntityType = "location"
	EntityDate     EntityType = "date"
	EntityOther    EntityType = "other"
)

// Entity is one named entity found in a piece of text.
type Entity struct {
	Text string     `json:"text"`
	Type EntityType `json:"type"`
}

func mapLabel(label string) EntityType {
	switch strings.ToUpper(label) {
	case "PERSON":
		return EntityPerson
	case "ORG", "NORP":
		return EntityOrg
	case "GPE", "LOC", "FAC":
		return EntityLocation
	case "DATE", "TIME":
		return EntityDate
	default:
		return EntityOther
	}
}

// Extract pulls named entities out of free text. It never errors to the
// caller: on a parse failure it logs and returns an empty slice, since
// entity enrichment is strictly additive context and must never block a
// concern touch or an orientation synthesis.
func Extract(text string) []Entity {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		logging.Debug("nlp", "prose parse failed: %v", err)
		return nil
	}

	var out []Entity
	seen := make(map[string]bool)
	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Entity{Text: name, Type: mapLabel(ent.Label)})
	}
	return out
}

// Names returns just the entity text, for callers that only need a flat
// keyword list (e.g. appended to a context note).
func Names(text string) []string {
	entities := Extract(text)
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Text
	}
	return names
}
