package ragextract

import (
	"context"
	"testing"

	"ragcore/internal/ragdomain"
)

type fakeChat struct {
	reply string
	err   error
	calls int
}

func (f *fakeChat) Chat(_ context.Context, _ []ChatMessage, _ float64, _ bool) (string, error) {
	f.calls++
	return f.reply, f.err
}

func TestSchemaExtractorFiltersUnknownLabels(t *testing.T) {
	fc := &fakeChat{reply: `{"entities":[{"name":"Jane Doe","label":"PERSON"},{"name":"Mystery","label":"ALIEN"}],"relations":[]}`}
	ex := NewSchemaExtractor(fc, 5)
	out, err := ex.Extract(context.Background(), "Jane Doe works here.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Entities) != 1 || out.Entities[0].Name != "Jane Doe" {
		t.Fatalf("expected only the PERSON entity to survive, got %+v", out.Entities)
	}
}

func TestSchemaExtractorFiltersNonConformingRelations(t *testing.T) {
	fc := &fakeChat{reply: `{"entities":[{"name":"Jane Doe","label":"PERSON"},{"name":"7020","label":"PURCHASE_ORDER"}],"relations":[{"source":"Jane Doe","label":"ORDERED","target":"7020"}]}`}
	ex := NewSchemaExtractor(fc, 5)
	out, err := ex.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Relations) != 0 {
		t.Fatalf("expected PERSON-ORDERED->PURCHASE_ORDER to be rejected (only COMPANY can ORDER), got %+v", out.Relations)
	}
}

func TestSchemaExtractorAcceptsConformingRelation(t *testing.T) {
	fc := &fakeChat{reply: `{"entities":[{"name":"Acme Corp","label":"COMPANY"},{"name":"7020","label":"PURCHASE_ORDER"}],"relations":[{"source":"Acme Corp","label":"ORDERED","target":"7020"}]}`}
	ex := NewSchemaExtractor(fc, 5)
	out, err := ex.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Relations) != 1 {
		t.Fatalf("expected the conforming relation to survive, got %+v", out.Relations)
	}
}

func TestSchemaExtractorCapsTriplets(t *testing.T) {
	fc := &fakeChat{reply: `{"entities":[{"name":"A","label":"COMPANY"},{"name":"B","label":"PURCHASE_ORDER"},{"name":"C","label":"PURCHASE_ORDER"}],
"relations":[{"source":"A","label":"ORDERED","target":"B"},{"source":"A","label":"ORDERED","target":"C"}]}`}
	ex := NewSchemaExtractor(fc, 1)
	out, err := ex.Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Relations) != 1 {
		t.Fatalf("expected relations capped at 1, got %d", len(out.Relations))
	}
}

func TestRelationshipValidatorRejectsOnChatError(t *testing.T) {
	fc := &fakeChat{err: context.DeadlineExceeded}
	v := NewRelationshipValidator(fc)
	rel := ragdomain.Relation{
		Source:   ragdomain.Entity{Name: "Acme", Label: ragdomain.LabelCompany},
		Relation: ragdomain.RelWorksFor,
		Target:   ragdomain.Entity{Name: "Jane", Label: ragdomain.LabelPerson},
	}
	if v.Validate(context.Background(), rel, "some text") {
		t.Fatalf("expected rejection on chat error")
	}
}

func TestRelationshipValidatorAcceptsYes(t *testing.T) {
	fc := &fakeChat{reply: "YES"}
	v := NewRelationshipValidator(fc)
	rel := ragdomain.Relation{
		Source:   ragdomain.Entity{Name: "Acme", Label: ragdomain.LabelCompany},
		Relation: ragdomain.RelOrdered,
		Target:   ragdomain.Entity{Name: "7020", Label: ragdomain.LabelPurchaseOrder},
	}
	if !v.Validate(context.Background(), rel, "Acme ordered PO 7020.") {
		t.Fatalf("expected acceptance on YES reply")
	}
}

func TestRelationshipValidatorRejectsNo(t *testing.T) {
	fc := &fakeChat{reply: "NO, not supported"}
	v := NewRelationshipValidator(fc)
	rel := ragdomain.Relation{
		Source:   ragdomain.Entity{Name: "Acme", Label: ragdomain.LabelCompany},
		Relation: ragdomain.RelOrdered,
		Target:   ragdomain.Entity{Name: "7020", Label: ragdomain.LabelPurchaseOrder},
	}
	if v.Validate(context.Background(), rel, "Acme and 7020 appear in the same sentence.") {
		t.Fatalf("expected rejection on NO reply")
	}
}
