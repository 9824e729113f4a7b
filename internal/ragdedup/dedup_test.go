package ragdedup

import (
	"context"
	"testing"
	"time"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragdomain"
	"ragcore/internal/ragobs"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{1, 2, 3}
	if s := cosineSimilarity(v, v); s < 0.999 {
		t.Fatalf("expected ~1.0 for identical vectors, got %f", s)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if s := cosineSimilarity(a, b); s != 0 {
		t.Fatalf("expected 0 for orthogonal vectors, got %f", s)
	}
}

func TestTextDistanceMatchSubstring(t *testing.T) {
	if !textDistanceMatch("Acme Corp", "Acme", 3) {
		t.Fatalf("expected substring match")
	}
}

func TestTextDistanceMatchLevenshtein(t *testing.T) {
	if !textDistanceMatch("Jon Smith", "John Smith", 3) {
		t.Fatalf("expected close names to match under the distance gate")
	}
	if textDistanceMatch("Acme Corp", "Zenith Industries", 3) {
		t.Fatalf("expected unrelated names not to match")
	}
}

func TestBuildClustersGroupsTransitiveDuplicates(t *testing.T) {
	a := ragdomain.Entity{EntityID: "COMPANY:acme", Name: "Acme", Label: ragdomain.LabelCompany, Embedding: []float32{1, 0, 0}}
	b := ragdomain.Entity{EntityID: "COMPANY:acme-corp", Name: "Acme Corp", Label: ragdomain.LabelCompany, Embedding: []float32{1, 0, 0}}
	c := ragdomain.Entity{EntityID: "COMPANY:acme-inc", Name: "Acme Inc", Label: ragdomain.LabelCompany, Embedding: []float32{1, 0, 0}}
	all := []ragdomain.Entity{a, b, c}

	matches := findDuplicates(all, all, 10, 0.5, 5)
	clusters := buildClusters(all, matches)
	if len(clusters) != 1 {
		t.Fatalf("expected one cluster grouping all three entities, got %d: %+v", len(clusters), clusters)
	}
	if len(clusters[0].DuplicateIDs) != 2 {
		t.Fatalf("expected 2 duplicates in the cluster, got %d", len(clusters[0].DuplicateIDs))
	}
}

func TestFindDuplicatesSkipsEntitiesWithoutEmbeddings(t *testing.T) {
	a := ragdomain.Entity{EntityID: "COMPANY:acme", Name: "Acme"}
	b := ragdomain.Entity{EntityID: "COMPANY:acme-corp", Name: "Acme Corp", Embedding: []float32{1, 0}}
	matches := findDuplicates([]ragdomain.Entity{a, b}, []ragdomain.Entity{a, b}, 10, 0.5, 3)
	if len(matches) != 0 {
		t.Fatalf("expected no matches when one side lacks an embedding, got %+v", matches)
	}
}

type fakeGraph struct {
	entities   map[ragdomain.Label][]ragdomain.Entity
	merged     []string
	sinceCalls []int64
}

func (f *fakeGraph) UpsertChunk(ctx context.Context, tenantID string, node ragdomain.ChunkNode, entities ragdomain.ChunkEntities) error {
	return nil
}
func (f *fakeGraph) UpsertEntity(ctx context.Context, tenantID string, entity ragdomain.Entity) error {
	for i, e := range f.entities[entity.Label] {
		if e.EntityID == entity.EntityID {
			f.entities[entity.Label][i] = entity
			return nil
		}
	}
	f.entities[entity.Label] = append(f.entities[entity.Label], entity)
	return nil
}
func (f *fakeGraph) UpsertRelation(ctx context.Context, tenantID string, relation ragdomain.Relation) error {
	return nil
}
func (f *fakeGraph) DeleteDocument(ctx context.Context, tenantID, documentID string) error { return nil }
func (f *fakeGraph) EntitiesByLabel(ctx context.Context, tenantID string, label ragdomain.Label, since int64) ([]ragdomain.Entity, error) {
	f.sinceCalls = append(f.sinceCalls, since)
	return f.entities[label], nil
}
func (f *fakeGraph) MergeEntities(ctx context.Context, tenantID, primaryID string, absorbedIDs []string) error {
	f.merged = append(f.merged, primaryID)
	return nil
}
func (f *fakeGraph) ExpandNeighbors(ctx context.Context, tenantID string, seedChunkIDs []string, hops int) ([]ragdomain.ChunkNode, error) {
	return nil, nil
}
func (f *fakeGraph) RunReadQuery(ctx context.Context, tenantID string, cypher string, params map[string]any, allowedFields []string) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeGraph) Close(ctx context.Context) error { return nil }

func TestRunDryRunReportsWithoutMerging(t *testing.T) {
	graph := &fakeGraph{entities: map[ragdomain.Label][]ragdomain.Entity{
		ragdomain.LabelCompany: {
			{EntityID: "COMPANY:acme", Name: "Acme", Label: ragdomain.LabelCompany, Embedding: []float32{1, 0}},
			{EntityID: "COMPANY:acme-corp", Name: "Acme Corp", Label: ragdomain.LabelCompany, Embedding: []float32{1, 0}},
		},
	}}
	d := New(graph, ragconfig.DedupConfig{SimilarityThreshold: 0.5, LevenshteinMaxDistance: 5, TopK: 10})
	report, err := d.Run(context.Background(), "tenant-a", true, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ClustersFound != 1 || report.DuplicatesFound != 1 {
		t.Fatalf("expected one cluster with one duplicate, got %+v", report)
	}
	if len(graph.merged) != 0 {
		t.Fatalf("dry run must not merge anything, got %v", graph.merged)
	}
}

func TestRunMergesClusters(t *testing.T) {
	graph := &fakeGraph{entities: map[ragdomain.Label][]ragdomain.Entity{
		ragdomain.LabelCompany: {
			{EntityID: "COMPANY:acme", Name: "Acme", Label: ragdomain.LabelCompany, Embedding: []float32{1, 0}},
			{EntityID: "COMPANY:acme-corp", Name: "Acme Corp", Label: ragdomain.LabelCompany, Embedding: []float32{1, 0}},
		},
	}}
	d := New(graph, ragconfig.DedupConfig{SimilarityThreshold: 0.5, LevenshteinMaxDistance: 5, TopK: 10, BatchSize: 10})
	report, err := d.Run(context.Background(), "tenant-a", false, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.EntitiesMerged != 1 {
		t.Fatalf("expected one merged cluster, got %+v", report)
	}
	if len(graph.merged) != 1 {
		t.Fatalf("expected MergeEntities to be called once, got %v", graph.merged)
	}
}

func TestRunFallsBackToConfiguredHoursLookback(t *testing.T) {
	graph := &fakeGraph{entities: map[ragdomain.Label][]ragdomain.Entity{
		ragdomain.LabelCompany: {
			{EntityID: "COMPANY:acme", Name: "Acme", Label: ragdomain.LabelCompany, Embedding: []float32{1, 0}},
		},
	}}
	hours := 6
	d := New(graph, ragconfig.DedupConfig{SimilarityThreshold: 0.5, LevenshteinMaxDistance: 5, TopK: 10, HoursLookback: &hours})
	d.Clock = ragobs.FixedClock{At: time.Unix(1_000_000, 0)}

	if _, err := d.Run(context.Background(), "tenant-a", true, RunOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantSince := int64(1_000_000 - 6*3600)
	found := false
	for _, since := range graph.sinceCalls {
		if since == wantSince {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a lookup with since=%d (derived from Cfg.HoursLookback), got calls %v", wantSince, graph.sinceCalls)
	}
}

func TestShouldAlertOnHighMergeCount(t *testing.T) {
	r := Report{EntitiesMerged: 150}
	if !r.ShouldAlert(100) {
		t.Fatalf("expected alert above threshold")
	}
	if (Report{EntitiesMerged: 5}).ShouldAlert(100) {
		t.Fatalf("expected no alert below threshold")
	}
}
