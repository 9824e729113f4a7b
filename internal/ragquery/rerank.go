package ragquery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"ragcore/internal/ragconfig"
)

// Reranker optionally reorders retrieved source nodes by semantic
// relevance to the query (e.g., via a cross-encoder). Implementations
// should not drop items. Generalized from
// intelligencedev-manifold's internal/rag/retrieve.Reranker, retargeted to
// SourceNode instead of RetrievedItem.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []SourceNode) ([]SourceNode, error)
}

// NoopReranker leaves ordering unchanged; the default when no reranker
// endpoint is configured.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, items []SourceNode) ([]SourceNode, error) {
	return items, nil
}

// HTTPReranker scores query/passage pairs against a sentence-pair
// cross-encoder endpoint (e.g. a BAAI/bge-reranker-base server), matching
// §4.6 step 4's "pluggable Reranker interface ... with an HTTP-backed
// implementation as the concrete reranker". The endpoint is assumed
// stateless and safe for concurrent use (§5 "reranker client is
// constructed once per process and shared").
type HTTPReranker struct {
	host string
	http *http.Client
}

// NewHTTPReranker builds an HTTPReranker from cfg, or nil if disabled.
func NewHTTPReranker(cfg ragconfig.RerankerConfig) *HTTPReranker {
	if !cfg.Enabled || cfg.Host == "" {
		return nil
	}
	return &HTTPReranker{host: cfg.Host, http: &http.Client{Timeout: 30 * time.Second}}
}

type rerankRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank sends query and every item's excerpt to the endpoint and reorders
// items by the returned scores, descending. On any transport or parse
// error it returns items unchanged (reranking is an optional refinement,
// not load-bearing for correctness).
func (r *HTTPReranker) Rerank(ctx context.Context, query string, items []SourceNode) ([]SourceNode, error) {
	if len(items) == 0 {
		return items, nil
	}
	passages := make([]string, len(items))
	for i, it := range items {
		passages[i] = it.Excerpt
	}
	body, err := json.Marshal(rerankRequest{Query: query, Passages: passages})
	if err != nil {
		return items, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.host+"/rerank", bytes.NewReader(body))
	if err != nil {
		return items, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return items, nil
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode/100 != 2 {
		return items, nil
	}
	var rr rerankResponse
	if err := json.Unmarshal(respBody, &rr); err != nil || len(rr.Scores) != len(items) {
		return items, nil
	}

	out := make([]SourceNode, len(items))
	copy(out, items)
	for i := range out {
		out[i].Score = rr.Scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
