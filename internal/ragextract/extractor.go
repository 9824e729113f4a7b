package ragextract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ragcore/internal/ragdomain"
)

// Extraction is the raw output of a single chunk's entity/relation
// extraction pass, before schema conformance or relationship validation.
type Extraction struct {
	Entities  []ragdomain.Entity
	Relations []ragdomain.Relation
}

type extractedEntity struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type extractedRelation struct {
	Source string `json:"source"`
	Label  string `json:"label"`
	Target string `json:"target"`
}

type extractionResponse struct {
	Entities  []extractedEntity   `json:"entities"`
	Relations []extractedRelation `json:"relations"`
}

// SchemaExtractor extracts entities and relations from chunk text,
// constrained to the closed label set and the (source, relation, target)
// triples in ragdomain.ValidationSchema. Generalizes the teacher's
// Anthropic/OpenAI chat clients behind ChatClient; the extraction prompt
// and JSON schema replace SchemaLLMPathExtractor's kg_schema_cls from
// original_source/app/services/ingestion/llamaindex/schema.py.
type SchemaExtractor struct {
	Chat                ChatClient
	MaxTripletsPerChunk int
}

// NewSchemaExtractor builds a SchemaExtractor.
func NewSchemaExtractor(chat ChatClient, maxTripletsPerChunk int) *SchemaExtractor {
	if maxTripletsPerChunk <= 0 {
		maxTripletsPerChunk = 5
	}
	return &SchemaExtractor{Chat: chat, MaxTripletsPerChunk: maxTripletsPerChunk}
}

// Extract runs a schema-guided extraction pass over chunkText, discarding
// any entity or relation outside the closed label set or triple schema.
func (e *SchemaExtractor) Extract(ctx context.Context, chunkText string) (Extraction, error) {
	prompt := e.buildPrompt(chunkText)
	raw, err := e.Chat.Chat(ctx, []ChatMessage{
		{Role: "system", Content: "You extract structured entities and relationships from business documents. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}, 0, true)
	if err != nil {
		return Extraction{}, fmt.Errorf("ragextract: chat call failed: %w", err)
	}

	var resp extractionResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil {
		return Extraction{}, fmt.Errorf("ragextract: parse extraction response: %w", err)
	}

	byName := map[string]ragdomain.Entity{}
	var entities []ragdomain.Entity
	for _, ee := range resp.Entities {
		label := ragdomain.Label(strings.ToUpper(ee.Label))
		if !isValidLabel(label) {
			continue
		}
		name := strings.TrimSpace(ee.Name)
		if name == "" {
			continue
		}
		ent := ragdomain.Entity{EntityID: ragdomain.EntityID(label, name), Name: name, Label: label}
		byName[ent.Name] = ent
		entities = append(entities, ent)
	}

	var relations []ragdomain.Relation
	for i, r := range resp.Relations {
		if i >= e.MaxTripletsPerChunk {
			break
		}
		src, ok1 := byName[strings.TrimSpace(r.Source)]
		dst, ok2 := byName[strings.TrimSpace(r.Target)]
		if !ok1 || !ok2 {
			continue
		}
		rel := ragdomain.Relation{
			Source:   src,
			Relation: ragdomain.RelationLabel(strings.ToUpper(r.Label)),
			Target:   dst,
		}
		if !rel.Conforms() {
			continue
		}
		relations = append(relations, rel)
	}

	return Extraction{Entities: entities, Relations: relations}, nil
}

func (e *SchemaExtractor) buildPrompt(chunkText string) string {
	var sb strings.Builder
	sb.WriteString("Extract entities and relationships from the text below.\n\n")
	sb.WriteString("Allowed entity labels: PERSON, COMPANY, ROLE, PURCHASE_ORDER, MATERIAL, CERTIFICATION.\n")
	sb.WriteString("Allowed relationships (source_label -LABEL-> target_label):\n")
	for _, t := range ragdomain.ValidationSchema {
		fmt.Fprintf(&sb, "  %s -%s-> %s\n", t.Source, t.Relation, t.Target)
	}
	sb.WriteString(fmt.Sprintf("\nExtract at most %d relationships; only ones explicitly stated in the text.\n\n", e.MaxTripletsPerChunk))
	sb.WriteString("Respond with JSON: {\"entities\": [{\"name\":...,\"label\":...}], \"relations\": [{\"source\":...,\"label\":...,\"target\":...}]}\n\n")
	sb.WriteString("TEXT:\n")
	sb.WriteString(chunkText)
	return sb.String()
}

func isValidLabel(l ragdomain.Label) bool {
	for _, v := range ragdomain.Labels {
		if v == l {
			return true
		}
	}
	return false
}

// extractJSONObject trims any prose surrounding a JSON object some chat
// backends still emit despite a JSON-only instruction.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
