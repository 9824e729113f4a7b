// Package ragchunk splits document content into overlapping chunks sized
// for embedding. Package layout follows the teacher's internal/rag/chunker
// (Chunk{Index,Text} + a Chunker interface + a concrete strategy
// implementation); the strategy itself is new: recursive splitting by
// separator preference (paragraph, line, sentence, word, character) per
// SPEC_FULL.md §4.1, replacing the teacher's fixed/markdown/code selection.
package ragchunk

import "strings"

// Chunk is one piece of a document's content, before embedding.
type Chunk struct {
	Index int
	Text  string
}

// Options configures a chunking run.
type Options struct {
	// TargetSize is the approximate chunk size in characters. Defaults to
	// 1024 when zero or negative.
	TargetSize int
	// Overlap is the number of trailing characters repeated at the start of
	// the next chunk. A negative value is treated as 0, and a value at or
	// above TargetSize is reduced to TargetSize/5.
	Overlap int
}

func (o Options) normalized() Options {
	if o.TargetSize <= 0 {
		o.TargetSize = 1024
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.TargetSize {
		o.Overlap = o.TargetSize / 5
	}
	return o
}

// Chunker splits text into chunks.
type Chunker interface {
	Chunk(text string, opt Options) ([]Chunk, error)
}

// RecursiveChunker splits content by trying separators in order of
// preference — paragraph, line, sentence, word, character — at each level
// only descending to the next separator for pieces still larger than the
// target size, then reassembles pieces into chunks of approximately
// TargetSize with Overlap trailing characters repeated between
// consecutive chunks.
type RecursiveChunker struct{}

var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunk implements Chunker.
func (RecursiveChunker) Chunk(text string, opt Options) ([]Chunk, error) {
	opt = opt.normalized()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	pieces := split(text, 0, opt.TargetSize)
	return pack(pieces, opt), nil
}

// split recursively breaks text on the most preferred separator that
// actually divides it into pieces no larger than targetSize; falls back to
// the next separator in the list when a piece is still oversized.
func split(text string, sepIdx int, targetSize int) []string {
	if len(text) <= targetSize || sepIdx >= len(separators) {
		return []string{text}
	}
	sep := separators[sepIdx]
	var parts []string
	if sep == "" {
		// Character-level fallback: hard-slice.
		for start := 0; start < len(text); start += targetSize {
			end := start + targetSize
			if end > len(text) {
				end = len(text)
			}
			parts = append(parts, text[start:end])
		}
		return parts
	}

	raw := strings.Split(text, sep)
	if len(raw) == 1 {
		// Separator absent; try the next one.
		return split(text, sepIdx+1, targetSize)
	}
	for i, r := range raw {
		piece := r
		if i < len(raw)-1 {
			piece += sep
		}
		if piece == "" {
			continue
		}
		if len(piece) > targetSize {
			parts = append(parts, split(piece, sepIdx+1, targetSize)...)
		} else {
			parts = append(parts, piece)
		}
	}
	return parts
}

// pack greedily accumulates pieces into chunks of approximately
// TargetSize, carrying Overlap trailing characters of the previous chunk
// into the next one's start.
func pack(pieces []string, opt Options) []Chunk {
	var out []Chunk
	var buf strings.Builder
	idx := 0

	flush := func(carry string) {
		s := strings.TrimSpace(buf.String())
		if s != "" {
			out = append(out, Chunk{Index: idx, Text: s})
			idx++
		}
		buf.Reset()
		if carry != "" {
			buf.WriteString(carry)
		}
	}

	for _, p := range pieces {
		if buf.Len() > 0 && buf.Len()+len(p) > opt.TargetSize {
			tail := overlapTail(buf.String(), opt.Overlap)
			flush(tail)
		}
		buf.WriteString(p)
	}
	flush("")
	return out
}

// overlapTail returns the trailing n characters of s, cut to a word
// boundary where possible so the carried-over text doesn't start mid-word.
func overlapTail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return ""
	}
	tail := s[len(s)-n:]
	if i := strings.IndexByte(tail, ' '); i >= 0 && i < n-1 {
		tail = tail[i+1:]
	}
	return tail
}
