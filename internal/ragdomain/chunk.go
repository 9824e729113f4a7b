package ragdomain

// Chunk is a contiguous substring of a document's content, plus the
// metadata it inherits from its parent document, plus its embedding once
// the embedder has run. ChunkID is opaque and derived as
// "chunk:<document_id>:<index>" by the ingestion pipeline.
type Chunk struct {
	ChunkID      string
	DocumentID   string
	Index        int
	Text         string
	TenantID     string
	Source       string
	DocumentType string
	Title        string
	CreatedAtTS  int64
	HasTimestamp bool
	Embedding    []float32
}

// Metadata returns the payload attached to the chunk in the vector store:
// document_id, tenant_id, source, document_type, title, chunk_index and
// text, plus created_at_timestamp when the chunk has a timestamp.
func (c Chunk) Metadata() map[string]any {
	m := map[string]any{
		"document_id":   c.DocumentID,
		"tenant_id":     c.TenantID,
		"source":        c.Source,
		"document_type": c.DocumentType,
		"title":         c.Title,
		"chunk_index":   c.Index,
		"text":          c.Text,
	}
	if c.HasTimestamp {
		m["created_at_timestamp"] = c.CreatedAtTS
	}
	return m
}
