// Package ragembed provides the embedding client used by the ingestion
// pipeline and dedup engine. Interface and HTTP client shape follow
// internal/rag/embedder/embedder.go and internal/embedding/client.go;
// the Redis cache and retry decorators are new, generalizing the
// distributed-lock client's Redis usage and the extractor's retry policy
// to embedding calls per SPEC_FULL.md §4.1/§4.4.
package ragembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ragcore/internal/ragconfig"
)

// Embedder produces dense vectors for a batch of texts.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
	Ping(ctx context.Context) error
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// httpEmbedder calls a single HTTP embedding endpoint, one batch per call,
// matching the teacher's EmbedText request/response shape.
type httpEmbedder struct {
	cfg  ragconfig.EmbeddingConfig
	dim  int
	http *http.Client
}

// NewClient builds an Embedder backed by the endpoint in cfg.
func NewClient(cfg ragconfig.EmbeddingConfig, dim int) Embedder {
	return &httpEmbedder{cfg: cfg, dim: dim, http: http.DefaultClient}
}

func (e *httpEmbedder) Name() string    { return e.cfg.Model }
func (e *httpEmbedder) Dimension() int  { return e.dim }

func (e *httpEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("ragembed: no inputs")
	}
	reqBody, err := json.Marshal(embedReq{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(e.cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := e.cfg.Host + e.cfg.Path
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	if e.cfg.APIHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	} else if e.cfg.APIHeader != "" {
		req.Header.Set(e.cfg.APIHeader, e.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ragembed: read response body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ragembed: embedding endpoint error: %s: %s", resp.Status, string(body))
	}

	var er embedResp
	if err := json.Unmarshal(body, &er); err != nil {
		n := len(body)
		if n > 200 {
			n = 200
		}
		return nil, fmt.Errorf("ragembed: parse embedding response (input count %d, body %s): %w", len(texts), string(body[:n]), err)
	}
	if len(er.Data) != len(texts) {
		return nil, fmt.Errorf("ragembed: unexpected embedding count: got %d, want %d", len(er.Data), len(texts))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

func (e *httpEmbedder) Ping(ctx context.Context) error {
	_, err := e.EmbedBatch(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("ragembed: reachability check failed: %w", err)
	}
	return nil
}
