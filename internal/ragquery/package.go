// Package ragquery implements the hybrid query engine (SPEC_FULL.md §4.6):
// time-keyword prefilter, LLM-based time-window extraction, database-level
// metadata filtering, recency-boosted and reranked vector retrieval,
// templated graph retrieval (timed via generated read-only Cypher, untimed
// via neighborhood expansion), sub-question decomposition/routing across
// both, and compact-mode answer synthesis. Grounded on
// original_source/app/services/ingestion/llamaindex/query_engine.py (the
// HybridQueryEngine, the algorithm of record) and
// recency_postprocessor.py, with the routing/reranking interfaces
// generalized from intelligencedev-manifold's internal/rag/retrieve
// package (Reranker/NoopReranker, fused-candidate shape).
package ragquery

import "time"

// SourceNode is one piece of retrieved evidence returned to a caller,
// matching §4.6's "Retrieval contract for consumers": document title,
// source tag, document type, created_at, a short excerpt, and a numeric
// relevance score. Callers deduplicate by (Source, DocumentID); the engine
// does not.
type SourceNode struct {
	DocumentID   string
	Title        string
	Source       string
	DocumentType string
	CreatedAt    *time.Time
	Excerpt      string
	Score        float64
	Tool         string // "vector_search" or "graph_search", for tracing
}

// ChatTurn is one message in a conversation history, following the
// {"role", "content"} shape get_chat_history returns.
type ChatTurn struct {
	Role    string
	Content string
}

// Response is the result of Query or Chat.
type Response struct {
	Answer      string
	SourceNodes []SourceNode
	Metadata    map[string]any
}

func unixToTime(ts int64) time.Time { return time.Unix(ts, 0).UTC() }
