package ragscheduler

import (
	"context"
	"strings"
	"testing"

	"ragcore/internal/ragstore"
)

func TestDispatcherExecuteRejectsUnknownJobKind(t *testing.T) {
	d := &Dispatcher{}
	err := d.Execute(context.Background(), ragstore.Job{Kind: ragstore.JobKind("unknown")})
	if err == nil || !strings.Contains(err.Error(), "unknown job kind") {
		t.Fatalf("expected unknown job kind error, got %v", err)
	}
}

func TestDispatcherExecuteRejectsMalformedPayloads(t *testing.T) {
	d := &Dispatcher{}
	kinds := []ragstore.JobKind{ragstore.JobIngest, ragstore.JobDedup, ragstore.JobBackfill}
	for _, kind := range kinds {
		err := d.Execute(context.Background(), ragstore.Job{Kind: kind, Payload: []byte("not json")})
		if err == nil {
			t.Fatalf("expected error for malformed %s payload", kind)
		}
	}
}

func TestDispatcherBackfillRequiresFetcher(t *testing.T) {
	d := &Dispatcher{}
	err := d.Execute(context.Background(), ragstore.Job{
		Kind:    ragstore.JobBackfill,
		Payload: []byte(`{"document_id": "doc-1", "artifact_kind": "embeddings"}`),
	})
	if err == nil || !strings.Contains(err.Error(), "no document fetcher configured") {
		t.Fatalf("expected missing-fetcher error, got %v", err)
	}
}
