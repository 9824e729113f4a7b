package ragdomain

// ChunkNode is the graph-side counterpart of a vector-store Chunk, keyed by
// the same ChunkID so the two stores stay correlated (§3 "Chunk node").
type ChunkNode struct {
	ChunkID      string
	DocumentID   string
	Text         string
	Title        string
	Source       string
	DocumentType string
	CreatedAtTS  int64
	HasTimestamp bool
}

// EdgeType names a graph relationship kind that is not a Relation (which
// connects two entities). MENTIONS and SENT/RECEIVED connect chunk nodes to
// entities.
type EdgeType string

const (
	EdgeMentions EdgeType = "MENTIONS"
	EdgeSent     EdgeType = "SENT"
	EdgeReceived EdgeType = "RECEIVED"
)

// ChunkEntities is the fan-out a single chunk produces for the graph
// store: a chunk node, its MENTIONS targets, any SENT/RECEIVED edges (for
// emails), and the validated relations extracted from it.
type ChunkEntities struct {
	Node      ChunkNode
	Entities  []Entity
	Relations []Relation
	// SentFrom / ReceivedBy are populated only for email documents; each
	// entry is a PERSON entity with a SENT or RECEIVED edge to Node.
	SentFrom    []Entity
	ReceivedBy  []Entity
}

// ChunkFromNode derives the vector-store Chunk shape that corresponds to a
// ChunkNode, used by tests asserting invariant 1 (vector/graph parity).
func ChunkFromNode(n ChunkNode, tenantID string, index int) Chunk {
	return Chunk{
		ChunkID:      n.ChunkID,
		DocumentID:   n.DocumentID,
		Index:        index,
		Text:         n.Text,
		TenantID:     tenantID,
		Source:       n.Source,
		DocumentType: n.DocumentType,
		Title:        n.Title,
		CreatedAtTS:  n.CreatedAtTS,
		HasTimestamp: n.HasTimestamp,
	}
}
