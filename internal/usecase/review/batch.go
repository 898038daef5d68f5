package review

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// BatchResult pairs one unit with its review. Err is set only when the
// unit's content could not be fetched at all; the review is then the
// fallback, so consumers can always render something.
type BatchResult struct {
	Unit   domain.ReviewUnit
	Review domain.CanonicalReview
	Err    error
}

// ReviewBatch reviews several independent units. Content fetches fan out
// up to BatchSize at a time; the actual model calls still funnel through
// the shared limiter, which keeps the global rate invariant intact.
// Results come back in input order.
func (o *Orchestrator) ReviewBatch(ctx context.Context, source UnitSource, keys []string) []BatchResult {
	results := make([]BatchResult, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.BatchSize)
	for i, key := range keys {
		g.Go(func() error {
			unit, err := source.Unit(gctx, key)
			if err != nil {
				o.logger.LogWarning(gctx, "failed to fetch review unit", map[string]interface{}{
					"unit":  key,
					"error": err.Error(),
				})
				results[i] = BatchResult{
					Unit:   domain.ReviewUnit{Identity: domain.Identity{Key: key, Label: key}},
					Review: domain.FallbackReview("could not fetch content: " + err.Error()),
					Err:    err,
				}
				return nil
			}
			results[i] = BatchResult{
				Unit:   unit,
				Review: o.Review(gctx, unit),
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; degradation is per-unit

	return results
}
