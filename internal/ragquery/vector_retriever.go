package ragquery

import (
	"context"
	"fmt"

	"ragcore/internal/ragembed"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

// VectorRetriever implements the vector_search tool: embed the question,
// run a filtered similarity search, recency-boost, then optionally
// rerank — the multi-stage pipeline described in §4.6 step 4.
type VectorRetriever struct {
	Store    ragstore.VectorStore
	Embedder ragembed.Embedder
	Reranker Reranker
	Clock    ragobs.Clock

	TopK       int
	RerankTopN int
	DecayDays  map[string]int
}

// Retrieve runs the pipeline against filters (which may be nil for an
// untimed query) and returns up to RerankTopN source nodes.
func (v *VectorRetriever) Retrieve(ctx context.Context, question string, filters []ragstore.VectorFilter) ([]SourceNode, error) {
	vecs, err := v.Embedder.EmbedBatch(ctx, []string{question})
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("ragquery: embed question: %w", err)
	}

	topK := v.TopK
	if topK <= 0 {
		topK = 20
	}
	results, err := v.Store.SimilaritySearch(ctx, vecs[0], topK, filters)
	if err != nil {
		return nil, fmt.Errorf("ragquery: vector similarity search: %w", err)
	}

	clock := v.Clock
	if clock == nil {
		clock = ragobs.SystemClock{}
	}
	boosted := RecencyBoost(results, clock.Now(), v.DecayDays)

	items := make([]SourceNode, len(boosted))
	for i, r := range boosted {
		items[i] = sourceNodeFromMetadata(r.ID, r.Score, r.Metadata)
	}

	reranker := v.Reranker
	if reranker == nil {
		reranker = NoopReranker{}
	}
	reranked, err := reranker.Rerank(ctx, question, items)
	if err == nil {
		items = reranked
	}

	topN := v.RerankTopN
	if topN <= 0 {
		topN = 10
	}
	if len(items) > topN {
		items = items[:topN]
	}
	return items, nil
}

func sourceNodeFromMetadata(id string, score float64, md map[string]any) SourceNode {
	n := SourceNode{DocumentID: id, Score: score, Tool: "vector_search"}
	if v, ok := md["document_id"].(string); ok {
		n.DocumentID = v
	}
	if v, ok := md["title"].(string); ok {
		n.Title = v
	}
	if v, ok := md["source"].(string); ok {
		n.Source = v
	}
	if v, ok := md["document_type"].(string); ok {
		n.DocumentType = v
	}
	if v, ok := md["text"].(string); ok {
		n.Excerpt = excerpt(v)
	}
	if ts, ok := createdAtTimestamp(md); ok {
		t := unixToTime(ts)
		n.CreatedAt = &t
	}
	return n
}

func excerpt(text string) string {
	const maxLen = 400
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	return string(r[:maxLen]) + "…"
}
