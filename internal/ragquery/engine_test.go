package ragquery

import (
	"context"
	"strings"
	"testing"
	"time"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragdomain"
	"ragcore/internal/ragextract"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

type fakeVectorStore struct {
	results []ragstore.VectorResult
}

func (f *fakeVectorStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	return nil
}
func (f *fakeVectorStore) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeVectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filters []ragstore.VectorFilter) ([]ragstore.VectorResult, error) {
	return f.results, nil
}
func (f *fakeVectorStore) Dimension() int { return 3 }
func (f *fakeVectorStore) Close() error   { return nil }

type fakeGraphStore struct {
	rows      []map[string]any
	neighbors []ragdomain.ChunkNode
}

func (f *fakeGraphStore) UpsertChunk(ctx context.Context, tenantID string, node ragdomain.ChunkNode, entities ragdomain.ChunkEntities) error {
	return nil
}
func (f *fakeGraphStore) UpsertEntity(ctx context.Context, tenantID string, entity ragdomain.Entity) error {
	return nil
}
func (f *fakeGraphStore) UpsertRelation(ctx context.Context, tenantID string, relation ragdomain.Relation) error {
	return nil
}
func (f *fakeGraphStore) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	return nil
}
func (f *fakeGraphStore) EntitiesByLabel(ctx context.Context, tenantID string, label ragdomain.Label, since int64) ([]ragdomain.Entity, error) {
	return nil, nil
}
func (f *fakeGraphStore) MergeEntities(ctx context.Context, tenantID, primaryID string, absorbedIDs []string) error {
	return nil
}
func (f *fakeGraphStore) ExpandNeighbors(ctx context.Context, tenantID string, seedChunkIDs []string, hops int) ([]ragdomain.ChunkNode, error) {
	return f.neighbors, nil
}
func (f *fakeGraphStore) RunReadQuery(ctx context.Context, tenantID string, cypher string, params map[string]any, allowedFields []string) ([]map[string]any, error) {
	return f.rows, nil
}
func (f *fakeGraphStore) Close(ctx context.Context) error { return nil }

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
func (f *fakeEmbedder) Name() string      { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return f.dim }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }

type fakeChat struct {
	timeFilterJSON  string
	decomposeJSON   string
	cypher          string
	synthesisAnswer string
}

func (f *fakeChat) Chat(ctx context.Context, msgs []ragextract.ChatMessage, temperature float64, jsonMode bool) (string, error) {
	last := msgs[len(msgs)-1].Content
	switch {
	case strings.Contains(last, "has_time_filter"):
		if f.timeFilterJSON != "" {
			return f.timeFilterJSON, nil
		}
		return `{"has_time_filter": false}`, nil
	case strings.Contains(last, "sub_questions"):
		if f.decomposeJSON != "" {
			return f.decomposeJSON, nil
		}
		return `garbage, not json`, nil
	case strings.Contains(last, "Cypher query"):
		if f.cypher != "" {
			return f.cypher, nil
		}
		return `MATCH (c:Chunk) RETURN c.text AS text LIMIT 5`, nil
	default:
		return f.synthesisAnswer, nil
	}
}

func TestQuerySkipsTimeExtractionWithoutKeyword(t *testing.T) {
	vs := &fakeVectorStore{results: []ragstore.VectorResult{
		{ID: "chunk:doc-1:0", Score: 0.9, Metadata: map[string]any{
			"document_id": "doc-1", "title": "Vendor Agreement", "source": "email", "document_type": "email", "text": "Acme supplies PC-1000.",
		}},
	}}
	chat := &fakeChat{
		decomposeJSON:   `{"sub_questions": [{"question": "what materials do we use?", "tool": "vector_search"}]}`,
		synthesisAnswer: "We use PC-1000 supplied by Acme.",
	}
	e := New(&fakeGraphStore{}, vs, &fakeEmbedder{dim: 3}, chat, NoopReranker{}, ragconfig.QueryConfig{SimilarityTopK: 20, RerankTopN: 10})
	e.Clock = ragobs.FixedClock{At: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)}

	resp, err := e.Query(context.Background(), "tenant-a", "what materials do we use?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "We use PC-1000 supplied by Acme." {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if resp.Metadata["time_filter_applied"] != false {
		t.Fatalf("expected no time filter, got %+v", resp.Metadata)
	}
	if len(resp.SourceNodes) != 1 || resp.SourceNodes[0].Title != "Vendor Agreement" {
		t.Fatalf("unexpected source nodes: %+v", resp.SourceNodes)
	}
}

func TestQueryAppliesTimeFilterAndRoutesToGraph(t *testing.T) {
	gs := &fakeGraphStore{rows: []map[string]any{
		{"text": "Hayden approved the PO.", "title": "Internal Memo", "created_at_timestamp": int64(1706745600)},
	}}
	chat := &fakeChat{
		timeFilterJSON:  `{"has_time_filter": true, "start_date": "2024-01-01", "end_date": "2024-01-31"}`,
		decomposeJSON:   `{"sub_questions": [{"question": "what did Hayden say last month?", "tool": "graph_search"}]}`,
		synthesisAnswer: "Hayden approved the purchase order (see Internal Memo).",
	}
	e := New(gs, &fakeVectorStore{}, &fakeEmbedder{dim: 3}, chat, NoopReranker{}, ragconfig.QueryConfig{SimilarityTopK: 20, RerankTopN: 10})
	e.Clock = ragobs.FixedClock{At: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)}

	resp, err := e.Query(context.Background(), "tenant-a", "what did Hayden say last month?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Metadata["time_filter_applied"] != true {
		t.Fatalf("expected time filter applied, got %+v", resp.Metadata)
	}
	if len(resp.SourceNodes) != 1 || resp.SourceNodes[0].Tool != "graph_search" {
		t.Fatalf("expected one graph_search source node, got %+v", resp.SourceNodes)
	}
}

func TestChatMarksIsChatAndTruncatesHistory(t *testing.T) {
	chat := &fakeChat{
		decomposeJSON:   `{"sub_questions": [{"question": "who supplies it?", "tool": "vector_search"}]}`,
		synthesisAnswer: "Acme Plastics supplies it.",
	}
	var history []ChatTurn
	for i := 0; i < 50; i++ {
		history = append(history, ChatTurn{Role: "user", Content: strings.Repeat("x", 500)})
	}
	e := New(&fakeGraphStore{}, &fakeVectorStore{}, &fakeEmbedder{dim: 3}, chat, NoopReranker{}, ragconfig.QueryConfig{SimilarityTopK: 20, RerankTopN: 10, ChatHistoryTokenBudget: 100})

	resp, err := e.Chat(context.Background(), "tenant-a", "who supplies it?", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Metadata["is_chat"] != true {
		t.Fatalf("expected is_chat true, got %+v", resp.Metadata)
	}
	if n := resp.Metadata["chat_history_length"].(int); n >= len(history) {
		t.Fatalf("expected history truncated below %d turns, got %d", len(history), n)
	}
}

func TestDecomposerFallsBackOnInvalidJSON(t *testing.T) {
	d := &Decomposer{Chat: &fakeChat{}}
	subs := d.Decompose(context.Background(), "what materials do we use?")
	if len(subs) != 1 || subs[0].Tool != "vector_search" || subs[0].Question != "what materials do we use?" {
		t.Fatalf("expected single vector_search fallback, got %+v", subs)
	}
}

func TestRecencyBoostReSortsDescending(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	results := []ragstore.VectorResult{
		{ID: "old", Score: 1.0, Metadata: map[string]any{"created_at_timestamp": now.AddDate(0, -6, 0).Unix(), "document_type": "email"}},
		{ID: "new", Score: 0.9, Metadata: map[string]any{"created_at_timestamp": now.Unix(), "document_type": "email"}},
		{ID: "no-ts", Score: 0.5, Metadata: map[string]any{}},
	}
	boosted := RecencyBoost(results, now, map[string]int{"email": 30})
	if boosted[0].ID != "new" {
		t.Fatalf("expected the freshest result to rank first, got %+v", boosted)
	}
}

func TestBuildVectorFiltersFromTimeFilter(t *testing.T) {
	tf := TimeFilter{HasTimeFilter: true, StartDate: "2024-01-01", EndDate: "2024-01-31"}
	filters := BuildVectorFilters(tf)
	if len(filters) != 2 {
		t.Fatalf("expected two filters (gte/lte), got %d", len(filters))
	}
	if filters[0].Op != ragstore.FilterGTE || filters[1].Op != ragstore.FilterLTE {
		t.Fatalf("unexpected filter ops: %+v", filters)
	}
}

func TestUntimedGraphSearchUsesVectorContextRetriever(t *testing.T) {
	gs := &fakeGraphStore{neighbors: []ragdomain.ChunkNode{
		{ChunkID: "chunk:doc-2:0", DocumentID: "doc-2", Title: "Org Chart", Text: "Jordan works for Acme.", DocumentType: "attachment"},
	}}
	vs := &fakeVectorStore{results: []ragstore.VectorResult{
		{ID: "chunk:doc-1:0", Score: 0.8, Metadata: map[string]any{"document_id": "doc-1", "title": "Roster", "text": "Jordan leads procurement."}},
	}}
	chat := &fakeChat{
		decomposeJSON:   `{"sub_questions": [{"question": "who does Jordan work with?", "tool": "graph_search"}]}`,
		synthesisAnswer: "Jordan works with the procurement team at Acme.",
	}
	e := New(gs, vs, &fakeEmbedder{dim: 3}, chat, NoopReranker{}, ragconfig.QueryConfig{SimilarityTopK: 20, RerankTopN: 10})

	resp, err := e.Query(context.Background(), "tenant-a", "who does Jordan work with?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.SourceNodes) != 2 {
		t.Fatalf("expected one seed and one expanded neighbor, got %+v", resp.SourceNodes)
	}
}

func TestHasTimeKeywordDetectsYearsAndPhrases(t *testing.T) {
	if !hasTimeKeyword("show me deals from Q3 2024") {
		t.Fatalf("expected Q3/year question to trigger time extraction")
	}
	if hasTimeKeyword("what materials do we use?") {
		t.Fatalf("expected plain question not to trigger time extraction")
	}
}
