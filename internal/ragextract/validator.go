package ragextract

import (
	"context"
	"fmt"
	"strings"

	"ragcore/internal/ragdomain"
)

const validationTextPreviewChars = 500

// RelationshipValidator re-checks each extracted relationship against the
// chunk text it was extracted from, rejecting anything not explicitly
// supported. Ported from
// app/services/ingestion/llamaindex/relationship_validator.py: the LLM
// answers YES/NO only, never regenerating data, and any error or
// uncertainty rejects (false negatives are preferred to false positives).
type RelationshipValidator struct {
	Chat ChatClient
}

// NewRelationshipValidator builds a RelationshipValidator.
func NewRelationshipValidator(chat ChatClient) *RelationshipValidator {
	return &RelationshipValidator{Chat: chat}
}

// Validate reports whether relation is explicitly supported by chunkText.
// On any chat error it rejects the relationship rather than risk a false
// positive entering the graph.
func (v *RelationshipValidator) Validate(ctx context.Context, relation ragdomain.Relation, chunkText string) bool {
	preview := chunkText
	if len(preview) > validationTextPreviewChars {
		preview = preview[:validationTextPreviewChars]
	}

	prompt := fmt.Sprintf(`Does this text EXPLICITLY support the relationship?

TEXT:
%s

RELATIONSHIP:
%s -%s-> %s

Rules:
- Answer YES only if the relationship is clearly stated or strongly implied
- Answer NO if entities are just mentioned together without a clear relationship
- Answer NO if you're uncertain

Answer only: YES or NO`, preview, relation.Source.Name, relation.Relation, relation.Target.Name)

	reply, err := v.Chat.Chat(ctx, []ChatMessage{{Role: "user", Content: prompt}}, 0, false)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToUpper(reply), "YES")
}

// ValidateAll validates every relation in relations against chunkText,
// returning only the ones that pass.
func (v *RelationshipValidator) ValidateAll(ctx context.Context, relations []ragdomain.Relation, chunkText string) []ragdomain.Relation {
	var out []ragdomain.Relation
	for _, r := range relations {
		if v.Validate(ctx, r, chunkText) {
			out = append(out, r)
		}
	}
	return out
}
