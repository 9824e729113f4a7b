package ragingest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ragcore/internal/ragdomain"
)

// IngestBatch ingests every document concurrently, bounded by numWorkers
// (falling back to Cfg.NumWorkers, then 4, when <= 0), returning one
// IngestResult per document in input order (§6: "IngestBatch(ctx, records,
// numWorkers, maxConcurrentGraph)"). maxConcurrentGraph, when positive,
// overrides Cfg.MaxConcurrentGraph for every document in this batch; each
// goroutine operates on its own shallow Pipeline copy so that override
// never races with a concurrently running batch using different knobs.
func (p *Pipeline) IngestBatch(ctx context.Context, docs []ragdomain.Document, numWorkers, maxConcurrentGraph int) []ragdomain.IngestResult {
	if numWorkers <= 0 {
		numWorkers = p.Cfg.NumWorkers
	}
	if numWorkers <= 0 {
		numWorkers = 4
	}

	results := make([]ragdomain.IngestResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i := range docs {
		i := i
		g.Go(func() error {
			sub := *p
			if maxConcurrentGraph > 0 {
				sub.Cfg.MaxConcurrentGraph = maxConcurrentGraph
			}
			results[i] = sub.IngestDocument(gctx, docs[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}
