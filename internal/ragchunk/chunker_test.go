package ragchunk

import (
	"strings"
	"testing"
)

func TestRecursiveChunkerEmptyText(t *testing.T) {
	chunks, err := (RecursiveChunker{}).Chunk("", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestRecursiveChunkerShortTextSingleChunk(t *testing.T) {
	chunks, err := (RecursiveChunker{}).Chunk("Hi John, PO 7020 shipped 2024-10-03.", Options{TargetSize: 1024, Overlap: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestRecursiveChunkerRespectsTargetSize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("This is paragraph number sentence with some words in it.\n\n")
	}
	chunks, err := (RecursiveChunker{}).Chunk(sb.String(), Options{TargetSize: 200, Overlap: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 400 {
			t.Fatalf("chunk %d exceeds reasonable bound: %d chars", c.Index, len(c.Text))
		}
	}
}

func TestRecursiveChunkerIndicesSequential(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("word ")
	}
	chunks, _ := (RecursiveChunker{}).Chunk(sb.String(), Options{TargetSize: 20, Overlap: 5})
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("expected sequential indices, got %d at position %d", c.Index, i)
		}
	}
}

func TestRecursiveChunkerCharacterFallbackOnLongWord(t *testing.T) {
	long := strings.Repeat("a", 5000)
	chunks, err := (RecursiveChunker{}).Chunk(long, Options{TargetSize: 1000, Overlap: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 4 {
		t.Fatalf("expected the long unbroken word to be hard-split, got %d chunks", len(chunks))
	}
}
