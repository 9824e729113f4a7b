package ragscheduler

import (
	"context"
	"encoding/json"
	"testing"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragstore"
)

type fakeDocStore struct {
	missing []ragstore.DocumentRecord
	marked  map[string]string
}

func (f *fakeDocStore) LookupByContentHash(ctx context.Context, tenantID, contentHash string) (ragstore.DocumentRecord, bool, error) {
	return ragstore.DocumentRecord{}, false, nil
}
func (f *fakeDocStore) Upsert(ctx context.Context, rec ragstore.DocumentRecord) error { return nil }
func (f *fakeDocStore) Delete(ctx context.Context, tenantID, docID string) error      { return nil }
func (f *fakeDocStore) Stats(ctx context.Context, tenantID string) (ragstore.Stats, error) {
	return ragstore.Stats{}, nil
}
func (f *fakeDocStore) MarkArtifact(ctx context.Context, tenantID, docID, kind string) error {
	if f.marked == nil {
		f.marked = map[string]string{}
	}
	f.marked[docID] = kind
	return nil
}
func (f *fakeDocStore) ListMissingArtifact(ctx context.Context, tenantID, kind string, limit int) ([]ragstore.DocumentRecord, error) {
	if limit < len(f.missing) {
		return f.missing[:limit], nil
	}
	return f.missing, nil
}
func (f *fakeDocStore) Close() {}

func TestBackfillRunEnqueuesOneJobPerMissingDocument(t *testing.T) {
	docs := &fakeDocStore{missing: []ragstore.DocumentRecord{
		{DocID: "doc-1", TenantID: "tenant-a"},
		{DocID: "doc-2", TenantID: "tenant-a"},
	}}
	queue := &fakeEnqueuer{}
	task := NewBackfillTask(docs, queue, ragconfig.SchedulerConfig{BackfillDefaultLimit: 100, BackfillMaxLimit: 1000})

	n, err := task.Run(context.Background(), "tenant-a", "graph_chunks", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 enqueued, got %d", n)
	}
	if len(queue.jobs) != 2 {
		t.Fatalf("expected 2 jobs on the queue, got %d", len(queue.jobs))
	}
	var payload BackfillItemPayload
	if err := json.Unmarshal(queue.jobs[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.DocumentID != "doc-1" || payload.ArtifactKind != "graph_chunks" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBackfillRunClampsToConfiguredMax(t *testing.T) {
	var missing []ragstore.DocumentRecord
	for i := 0; i < 10; i++ {
		missing = append(missing, ragstore.DocumentRecord{DocID: "doc", TenantID: "tenant-a"})
	}
	docs := &fakeDocStore{missing: missing}
	queue := &fakeEnqueuer{}
	task := NewBackfillTask(docs, queue, ragconfig.SchedulerConfig{BackfillDefaultLimit: 100, BackfillMaxLimit: 5})

	n, err := task.Run(context.Background(), "tenant-a", "embeddings", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected clamped count of 5, got %d", n)
	}
}
