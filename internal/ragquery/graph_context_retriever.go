package ragquery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ragcore/internal/ragembed"
	"ragcore/internal/ragstore"
)

// hopExpansionDefault is the hop count passed to GraphStore.ExpandNeighbors
// for untimed graph questions. Neo4jGraphStore.ExpandNeighbors returns the
// same direct-neighbor set for any hop count of 1 or more, so expansion
// reaches chunks one shared entity away from a seed, not two.
const hopExpansionDefault = 2

// synonymWord matches a capitalized token or quoted phrase, a cheap
// stand-in for the original's synonym-retriever keyword rewrite: entity
// names in these documents (people, companies, purchase orders) are
// reliably capitalized, so pulling them out directly skips a second LLM
// round-trip for the common case.
var synonymWord = regexp.MustCompile(`"[^"]+"|\b[A-Z][a-zA-Z0-9]+\b`)

// VectorContextRetriever answers untimed graph questions: it seeds from a
// small, unfiltered vector search over chunk embeddings whose query text is
// the question's candidate entity keywords, then expands each seed's
// neighborhood via GraphStore.ExpandNeighbors.
type VectorContextRetriever struct {
	Graph    ragstore.GraphStore
	Store    ragstore.VectorStore
	Embedder ragembed.Embedder
	Hops     int
	SeedK    int
}

func (g *VectorContextRetriever) Retrieve(ctx context.Context, tenantID, question string) ([]SourceNode, error) {
	vecs, err := g.Embedder.EmbedBatch(ctx, []string{synonymKeywords(question)})
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("ragquery: embed graph-context question: %w", err)
	}
	seedK := g.SeedK
	if seedK <= 0 {
		seedK = 5
	}
	seeds, err := g.Store.SimilaritySearch(ctx, vecs[0], seedK, nil)
	if err != nil {
		return nil, fmt.Errorf("ragquery: seed vector search: %w", err)
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	seedIDs := make([]string, len(seeds))
	for i, s := range seeds {
		seedIDs[i] = s.ID
	}
	hops := g.Hops
	if hops <= 0 {
		hops = hopExpansionDefault
	}
	neighbors, err := g.Graph.ExpandNeighbors(ctx, tenantID, seedIDs, hops)
	if err != nil {
		return nil, fmt.Errorf("ragquery: expand graph neighbors: %w", err)
	}

	out := make([]SourceNode, 0, len(seeds)+len(neighbors))
	for _, s := range seeds {
		out = append(out, sourceNodeFromMetadata(s.ID, s.Score, s.Metadata))
	}
	for _, n := range neighbors {
		node := SourceNode{
			DocumentID:   n.DocumentID,
			Title:        n.Title,
			Source:       n.Source,
			DocumentType: n.DocumentType,
			Excerpt:      excerpt(n.Text),
			Score:        0.5, // neighbors inherit no direct similarity score
			Tool:         "graph_search",
		}
		if n.HasTimestamp {
			t := unixToTime(n.CreatedAtTS)
			node.CreatedAt = &t
		}
		out = append(out, node)
	}
	return out, nil
}

// synonymKeywords extracts the capitalized tokens and quoted phrases from
// question as a keyword-only rewrite, falling back to the question itself
// when nothing is capitalized.
func synonymKeywords(question string) string {
	matches := synonymWord.FindAllString(question, -1)
	if len(matches) == 0 {
		return question
	}
	return strings.Join(matches, " ")
}
