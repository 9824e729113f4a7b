package ragdomain

import "fmt"

// Label is one of the closed entity labels the extractor may produce.
type Label string

const (
	LabelPerson          Label = "PERSON"
	LabelCompany         Label = "COMPANY"
	LabelRole            Label = "ROLE"
	LabelPurchaseOrder   Label = "PURCHASE_ORDER"
	LabelMaterial        Label = "MATERIAL"
	LabelCertification   Label = "CERTIFICATION"
)

// Labels is the closed set of entity labels, in a stable order for prompt
// construction.
var Labels = []Label{
	LabelPerson, LabelCompany, LabelRole,
	LabelPurchaseOrder, LabelMaterial, LabelCertification,
}

func validLabel(l Label) bool {
	for _, v := range Labels {
		if v == l {
			return true
		}
	}
	return false
}

// RelationLabel is one of the closed relation types.
type RelationLabel string

const (
	RelWorksFor    RelationLabel = "WORKS_FOR"
	RelHasRole     RelationLabel = "HAS_ROLE"
	RelOrdered     RelationLabel = "ORDERED"
	RelSupplies    RelationLabel = "SUPPLIES"
	RelCertifiedBy RelationLabel = "CERTIFIED_BY"
	RelRequires    RelationLabel = "REQUIRES"
)

// SchemaTriple is one permitted (source_label, relation_label,
// target_label) entry in the validation schema.
type SchemaTriple struct {
	Source   Label
	Relation RelationLabel
	Target   Label
}

// ValidationSchema is the closed table of permitted relation triples
// (§4.3/§4.4/Testable Property 3). Extend by adding rows here; the
// extractor and dedup-merge code both consult this table, never a
// hardcoded switch.
var ValidationSchema = []SchemaTriple{
	{LabelPerson, RelWorksFor, LabelCompany},
	{LabelPerson, RelHasRole, LabelRole},
	{LabelCompany, RelOrdered, LabelPurchaseOrder},
	{LabelCompany, RelSupplies, LabelMaterial},
	{LabelMaterial, RelCertifiedBy, LabelCertification},
	{LabelPurchaseOrder, RelRequires, LabelMaterial},
}

// ConformsToSchema reports whether (sourceLabel, relation, targetLabel) is
// a permitted triple.
func ConformsToSchema(source Label, relation RelationLabel, target Label) bool {
	for _, t := range ValidationSchema {
		if t.Source == source && t.Relation == relation && t.Target == target {
			return true
		}
	}
	return false
}

// Entity is a typed, context-free node in the graph. EntityID is derived
// from (Label, Name) so that mentions across documents resolve to the same
// node (§3 "Entity").
type Entity struct {
	EntityID  string
	Label     Label
	Name      string
	Props     map[string]string
	Embedding []float32
}

// EmbeddingText is the canonical text embedded for an entity: "{label}: {name}".
func (e Entity) EmbeddingText() string {
	return fmt.Sprintf("%s: %s", e.Label, e.Name)
}

// EntityID computes the stable identifier for (label, name), matching the
// entity-identity rule in §3: same name+label resolves to the same node.
func EntityID(label Label, name string) string {
	return fmt.Sprintf("%s:%s", label, normalizeName(name))
}

func normalizeName(name string) string {
	return name
}

// Relation is a typed, directed edge between two entities, constrained by
// ValidationSchema.
type Relation struct {
	Source   Entity
	Relation RelationLabel
	Target   Entity
}

// Conforms reports whether r's triple is permitted by ValidationSchema.
func (r Relation) Conforms() bool {
	return ConformsToSchema(r.Source.Label, r.Relation, r.Target.Label)
}

// ForbiddenEntityProps are property keys that must never appear on an
// entity node because they are document-scoped, not entity-scoped
// (Testable Property 2).
var ForbiddenEntityProps = map[string]bool{
	"document_id": true,
	"title":       true,
	"file_size":   true,
	"source":      true,
	"source_id":   true,
	"tenant_id":   true,
}
