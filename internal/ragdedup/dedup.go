package ragdedup

import (
	"context"
	"fmt"

	"ragcore/internal/ragconfig"
	"ragcore/internal/ragdomain"
	"ragcore/internal/ragembed"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

// Report is the outcome of a Run, matching
// EntityDeduplicationService.deduplicate_entities's result shape.
type Report struct {
	DryRun                bool
	DuplicatesFound       int
	ClustersFound         int
	EntitiesMerged        int
	ClustersSkipped       int
	EmbeddingsRegenerated int
	Clusters              []Cluster
}

// ShouldAlert reports whether r merged a suspiciously high number of
// entities in one run, matching should_alert's >AlertThreshold rule — a
// likely sign the similarity threshold is misconfigured.
func (r Report) ShouldAlert(alertThreshold int) bool {
	return r.EntitiesMerged > alertThreshold
}

// Deduper runs the periodic entity deduplication job for one tenant.
type Deduper struct {
	Graph    ragstore.GraphStore
	Embedder ragembed.Embedder
	Cfg      ragconfig.DedupConfig
	Log      ragobs.Logger
	Clock    ragobs.Clock
}

// New builds a Deduper, filling in no-op observability defaults.
func New(graph ragstore.GraphStore, cfg ragconfig.DedupConfig) *Deduper {
	return &Deduper{Graph: graph, Cfg: cfg, Log: ragobs.NoopLogger{}, Clock: ragobs.SystemClock{}}
}

// RunOptions overrides the configured dedup thresholds for a single Run
// call (§6: "RunDedup(ctx, dryRun?, similarityThreshold?, maxStringDistance?,
// hoursLookback?)"). A nil field falls back to the Deduper's Cfg value.
type RunOptions struct {
	SimilarityThreshold *float64
	MaxStringDistance   *int
	HoursLookback       *int
}

// Run scans every closed entity label for near-duplicates and, unless
// dryRun, merges each cluster via Graph.MergeEntities. The effective
// hours-lookback (opts.HoursLookback, falling back to d.Cfg.HoursLookback
// like the other RunOptions fields), when non-nil, restricts the set of
// entities actively checked to the ones GraphStore.EntitiesByLabel returns
// for that cutoff (with the Neo4j store, entities that carry no
// updated_at_ts are always included); candidates are always drawn from the complete per-label entity set
// regardless, so a brand-new entity still matches something created
// months ago.
func (d *Deduper) Run(ctx context.Context, tenantID string, dryRun bool, opts RunOptions) (Report, error) {
	similarityThreshold := threshold(d.Cfg.SimilarityThreshold)
	if opts.SimilarityThreshold != nil {
		similarityThreshold = *opts.SimilarityThreshold
	}
	maxStringDistance := maxDistance(d.Cfg.LevenshteinMaxDistance)
	if opts.MaxStringDistance != nil {
		maxStringDistance = *opts.MaxStringDistance
	}
	hoursLookback := d.Cfg.HoursLookback
	if opts.HoursLookback != nil {
		hoursLookback = opts.HoursLookback
	}

	since := int64(0)
	if hoursLookback != nil {
		since = d.Clock.Now().Unix() - int64(*hoursLookback)*3600
	}

	var allClusters []Cluster
	for _, label := range ragdomain.Labels {
		all, err := d.Graph.EntitiesByLabel(ctx, tenantID, label, 0)
		if err != nil {
			return Report{}, fmt.Errorf("ragdedup: list %s entities: %w", label, err)
		}
		checked := all
		if hoursLookback != nil {
			checked, err = d.Graph.EntitiesByLabel(ctx, tenantID, label, since)
			if err != nil {
				return Report{}, fmt.Errorf("ragdedup: list recent %s entities: %w", label, err)
			}
		}

		matches := findDuplicates(checked, all, topK(d.Cfg.TopK), similarityThreshold, maxStringDistance)
		allClusters = append(allClusters, buildClusters(all, matches)...)
	}

	report := Report{DryRun: dryRun, ClustersFound: len(allClusters)}
	for _, c := range allClusters {
		report.DuplicatesFound += len(c.DuplicateIDs)
	}
	if dryRun {
		report.Clusters = allClusters
		d.Log.Info("dedup_dry_run_complete", map[string]any{"tenant_id": tenantID, "clusters": len(allClusters), "duplicates": report.DuplicatesFound})
		return report, nil
	}

	batchSize := d.Cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	for start := 0; start < len(allClusters); start += batchSize {
		end := start + batchSize
		if end > len(allClusters) {
			end = len(allClusters)
		}
		for _, c := range allClusters[start:end] {
			if err := d.mergeCluster(ctx, tenantID, c, &report.EmbeddingsRegenerated); err != nil {
				d.Log.Error("dedup_merge_failed", map[string]any{"tenant_id": tenantID, "primary_id": c.PrimaryID, "error": err.Error()})
				report.ClustersSkipped++
				continue
			}
			report.EntitiesMerged++
		}
		d.Log.Info("dedup_batch_complete", map[string]any{"tenant_id": tenantID, "merged": report.EntitiesMerged, "skipped": report.ClustersSkipped})
	}

	d.Log.Info("dedup_complete", map[string]any{"tenant_id": tenantID, "merged": report.EntitiesMerged, "skipped": report.ClustersSkipped, "embeddings_regenerated": report.EmbeddingsRegenerated})
	return report, nil
}

// mergeCluster merges a cluster's duplicates into its primary and, if the
// primary comes out of the merge with no embedding (self-healing per the
// teacher's design), regenerates one via the Embedder, counting each
// regeneration in *regenerated.
func (d *Deduper) mergeCluster(ctx context.Context, tenantID string, c Cluster, regenerated *int) error {
	if err := d.Graph.MergeEntities(ctx, tenantID, c.PrimaryID, c.DuplicateIDs); err != nil {
		return err
	}

	if d.Embedder == nil {
		return nil
	}
	label, _ := parseEntityID(c.PrimaryID)
	if label == "" {
		return nil
	}
	existing, err := d.Graph.EntitiesByLabel(ctx, tenantID, label, 0)
	if err != nil {
		return nil
	}
	for _, e := range existing {
		if e.EntityID != c.PrimaryID || len(e.Embedding) > 0 {
			continue
		}
		vecs, err := d.Embedder.EmbedBatch(ctx, []string{e.EmbeddingText()})
		if err != nil || len(vecs) == 0 {
			d.Log.Error("dedup_self_heal_failed", map[string]any{"entity_id": c.PrimaryID, "error": fmt.Sprint(err)})
			return nil
		}
		e.Embedding = vecs[0]
		if err := d.Graph.UpsertEntity(ctx, tenantID, e); err != nil {
			return nil
		}
		d.Log.Info("dedup_self_heal_regenerated", map[string]any{"entity_id": c.PrimaryID})
		*regenerated++
	}
	return nil
}

// parseEntityID recovers the label from an "entity_id" built by
// ragdomain.EntityID, which joins label and normalized name with ":".
func parseEntityID(entityID string) (ragdomain.Label, string) {
	for i := 0; i < len(entityID); i++ {
		if entityID[i] == ':' {
			return ragdomain.Label(entityID[:i]), entityID[i+1:]
		}
	}
	return "", ""
}

func topK(v int) int {
	if v <= 0 {
		return 10
	}
	return v
}

func threshold(v float64) float64 {
	if v <= 0 {
		return 0.92
	}
	return v
}

func maxDistance(v int) int {
	if v <= 0 {
		return 3
	}
	return v
}
