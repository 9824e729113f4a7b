// Package ragdomain defines the data model shared by the ingestion pipeline,
// the dedup engine, and the hybrid query engine: documents, chunks, entities,
// relations, and the graph-metadata sanitization rules that keep all three
// stores representing the same values the same way.
package ragdomain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const maxContentChars = 100_000

// Document is the input record the core accepts from external collaborators.
// It is treated as immutable per (TenantID, Source, SourceID).
type Document struct {
	DocID        string
	TenantID     string
	Source       string
	SourceID     string
	DocumentType string
	Title        string
	Content      string
	CreatedAt    *time.Time

	// Fields type-specific extraction code reads (e.g. email sender/recipients).
	SenderAddress string
	ToAddresses   []string
	Fields        map[string]any

	// ParentDocID is set when this document is an attachment; if CreatedAt is
	// nil it inherits the parent's timestamp during Prepare.
	ParentDocID string
}

// Normalize strips null bytes and caps content length per §3. It must run
// before ContentHash is computed so the hash is stable under truncation.
func (d *Document) Normalize() {
	d.Content = strings.ReplaceAll(d.Content, "\x00", "")
	if len(d.Content) > maxContentChars {
		d.Content = truncateRunes(d.Content, maxContentChars)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ContentHash is a stable digest of normalized content used for duplicate
// suppression. It intentionally excludes metadata: two documents with
// identical content but different titles are still the same content for
// dedup purposes, matching the original's content_hash semantics.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// CreatedAtTimestamp derives the integer Unix-second timestamp carried on
// every chunk and chunk node. Returns (0, false) when CreatedAt is nil.
func (d *Document) CreatedAtTimestamp() (int64, bool) {
	if d.CreatedAt == nil {
		return 0, false
	}
	return d.CreatedAt.Unix(), true
}

// PreparedDocument is the canonical representation produced by the
// ingestion pipeline's Prepare stage (§4.4 step 1).
type PreparedDocument struct {
	Document
	ContentHash        string
	Metadata           map[string]any
	CreatedAtTimestamp int64
	HasTimestamp       bool
}
