// Package ragquery (engine.go) wires the time extractor, the two routed
// retrieval tools, the decomposer, and the synthesizer into the engine
// SPEC_FULL.md §4.6 exposes: Query and Chat.
package ragquery

import (
	"context"
	"fmt"
	"strings"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragembed"
	"ragcore/internal/ragextract"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

// Engine answers natural-language questions over the ingested corpus by
// decomposing them into sub-questions, routing each to a vector or graph
// retriever, and synthesizing a single answer (§4.6).
type Engine struct {
	Graph    ragstore.GraphStore
	Store    ragstore.VectorStore
	Embedder ragembed.Embedder
	Chat     ragextract.ChatClient // query LLM: time extraction, decomposition, synthesis
	Reranker Reranker
	Clock    ragobs.Clock
	Log      ragobs.Logger
	Cfg      ragconfig.QueryConfig

	SynthesisTemplate string

	timeExtractor *TimeExtractor
	decomposer    *Decomposer
	synthesizer   *Synthesizer
}

// New builds an Engine from its dependencies, filling in no-op
// observability defaults.
func New(graph ragstore.GraphStore, store ragstore.VectorStore, embedder ragembed.Embedder, chat ragextract.ChatClient, reranker Reranker, cfg ragconfig.QueryConfig) *Engine {
	e := &Engine{
		Graph:    graph,
		Store:    store,
		Embedder: embedder,
		Chat:     chat,
		Reranker: reranker,
		Clock:    ragobs.SystemClock{},
		Log:      ragobs.NoopLogger{},
		Cfg:      cfg,
	}
	e.timeExtractor = &TimeExtractor{Chat: chat, Clock: e.Clock}
	e.decomposer = &Decomposer{Chat: chat}
	e.synthesizer = &Synthesizer{Chat: chat}
	return e
}

// Query answers question for tenantID, with retrieval itself stateless
// (no chat history injected).
func (e *Engine) Query(ctx context.Context, tenantID, question string) (Response, error) {
	return e.run(ctx, tenantID, question, nil)
}

// Chat answers message for tenantID, injecting a token-truncated,
// newest-first chat history into the synthesis prompt. Retrieval itself
// remains stateless — only the final answer is conversational.
func (e *Engine) Chat(ctx context.Context, tenantID, message string, history []ChatTurn) (Response, error) {
	truncated := truncateHistory(history, e.Cfg.ChatHistoryTokenBudget)
	resp, err := e.run(ctx, tenantID, message, truncated)
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["is_chat"] = true
	resp.Metadata["chat_history_length"] = len(truncated)
	return resp, err
}

func (e *Engine) run(ctx context.Context, tenantID, question string, history []ChatTurn) (Response, error) {
	e.timeExtractor.Clock = e.Clock
	var tf TimeFilter
	hasTimeFilter := false
	if hasTimeKeyword(question) {
		tf, hasTimeFilter = e.timeExtractor.Extract(ctx, question)
	}

	vectorFilters := BuildVectorFilters(tf)
	vectorRetriever := &VectorRetriever{
		Store:      e.Store,
		Embedder:   e.Embedder,
		Reranker:   e.Reranker,
		Clock:      e.Clock,
		TopK:       e.Cfg.SimilarityTopK,
		RerankTopN: e.Cfg.RerankTopN,
		DecayDays:  e.Cfg.RecencyDecayDays,
	}

	var graphRetrieve func(ctx context.Context, question string) ([]SourceNode, error)
	if hasTimeFilter {
		startTS, endTS, _ := tf.Timestamps()
		c2c := &Text2CypherRetriever{Graph: e.Graph, Chat: e.Chat, Clock: e.Clock}
		graphRetrieve = func(ctx context.Context, q string) ([]SourceNode, error) {
			return c2c.Retrieve(ctx, tenantID, q, startTS, endTS)
		}
	} else {
		vc := &VectorContextRetriever{Graph: e.Graph, Store: e.Store, Embedder: e.Embedder}
		graphRetrieve = func(ctx context.Context, q string) ([]SourceNode, error) {
			return vc.Retrieve(ctx, tenantID, q)
		}
	}

	subQuestions := e.decomposer.Decompose(ctx, question)

	var allNodes []SourceNode
	subAnswers := make([]string, 0, len(subQuestions))
	for _, sq := range subQuestions {
		var nodes []SourceNode
		var err error
		switch sq.Tool {
		case "graph_search":
			nodes, err = graphRetrieve(ctx, sq.Question)
		default:
			nodes, err = vectorRetriever.Retrieve(ctx, sq.Question, vectorFilters)
		}
		if err != nil {
			e.Log.Error("ragquery_subquestion_failed", map[string]any{"tool": sq.Tool, "question": sq.Question, "error": err.Error()})
			continue
		}
		allNodes = append(allNodes, nodes...)
		subAnswers = append(subAnswers, formatSubAnswer(sq, nodes))
	}

	e.synthesizer.Template = e.SynthesisTemplate
	answer, err := e.synthesizer.Synthesize(ctx, question, subAnswers, history)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Answer:      answer,
		SourceNodes: allNodes,
		Metadata:    map[string]any{"time_filter_applied": hasTimeFilter},
	}, nil
}

func formatSubAnswer(sq SubQuestion, nodes []SourceNode) string {
	if len(nodes) == 0 {
		return fmt.Sprintf("Sub-question (%s): %s\n(no results)", sq.Tool, sq.Question)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sub-question (%s): %s\n", sq.Tool, sq.Question)
	for _, n := range nodes {
		title := n.Title
		if title == "" {
			title = n.DocumentID
		}
		fmt.Fprintf(&sb, "- [%s] %s\n", title, n.Excerpt)
	}
	return sb.String()
}
