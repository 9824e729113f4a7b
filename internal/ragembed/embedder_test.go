package ragembed

import (
	"context"
	"testing"
)

func TestDeterministicEmbedderSameTextSameVector(t *testing.T) {
	e := NewDeterministic(16, true, 42)
	a, err := e.EmbedBatch(context.Background(), []string{"PO 7020 shipped to Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.EmbedBatch(context.Background(), []string{"PO 7020 shipped to Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("expected identical vectors for identical text, differ at %d: %f vs %f", i, a[0][i], b[0][i])
		}
	}
}

func TestDeterministicEmbedderDimension(t *testing.T) {
	e := NewDeterministic(32, false, 1)
	if e.Dimension() != 32 {
		t.Fatalf("expected dimension 32, got %d", e.Dimension())
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs[0]) != 32 {
		t.Fatalf("expected vector length 32, got %d", len(vecs[0]))
	}
}

func TestDeterministicEmbedderEmptyText(t *testing.T) {
	e := NewDeterministic(8, true, 0)
	vecs, err := e.EmbedBatch(context.Background(), []string{""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, x := range vecs[0] {
		if x != 0 {
			t.Fatalf("expected zero vector for empty text, got %v", vecs[0])
		}
	}
}

func TestDeterministicEmbedderNormalized(t *testing.T) {
	e := NewDeterministic(16, true, 7)
	vecs, err := e.EmbedBatch(context.Background(), []string{"some reasonably long sentence to hash"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	if norm < 0.98 || norm > 1.02 {
		t.Fatalf("expected roughly unit norm, got %f", norm)
	}
}

func TestDeterministicEmbedderDefaultDimension(t *testing.T) {
	e := NewDeterministic(0, false, 0)
	if e.Dimension() != 8 {
		t.Fatalf("expected default dimension 8, got %d", e.Dimension())
	}
}

type fakeInner struct {
	calls int
	dim   int
}

func (f *fakeInner) Name() string   { return "fake" }
func (f *fakeInner) Dimension() int { return f.dim }
func (f *fakeInner) Ping(context.Context) error { return nil }
func (f *fakeInner) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func TestRetryingEmbedderPassesThroughOnSuccess(t *testing.T) {
	inner := &fakeInner{dim: 4}
	r := NewRetrying(inner)
	vecs, err := r.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly 1 call on success, got %d", inner.calls)
	}
}
