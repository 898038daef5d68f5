// Package review orchestrates the resilient review pipeline: chunking,
// rate-limited dispatch with retry, response normalization and validation,
// truncation detection, and aggregation.
package review

import (
	"context"
	"fmt"

	llmhttp "github.com/bkyoung/review-pipeline/internal/adapter/llm/http"
	"github.com/bkyoung/review-pipeline/internal/aggregate"
	"github.com/bkyoung/review-pipeline/internal/chunk"
	"github.com/bkyoung/review-pipeline/internal/domain"
	"github.com/bkyoung/review-pipeline/internal/normalize"
	"github.com/bkyoung/review-pipeline/internal/schema"
)

// Options bound the pipeline's behavior for one orchestrator.
type Options struct {
	// MaxChunkBytes is the chunker's byte budget, normally derived from
	// the provider's token ceiling.
	MaxChunkBytes int

	// MaxOutputTokens is passed through to the provider on every call.
	MaxOutputTokens int

	// RetryAttempts bounds the per-call retry loop (1-10).
	RetryAttempts int

	// BatchSize caps concurrent unit fetches in batch mode.
	BatchSize int

	// Instructions are custom review instructions included in every prompt.
	Instructions string
}

// Dependencies captures the orchestrator's collaborators. Provider and
// Limiter are required; Logger and Store may be nil.
type Dependencies struct {
	Provider Provider
	Limiter  Limiter
	Logger   Logger
	Store    HistoryStore
}

// Orchestrator runs review units through the pipeline. Chunk dispatch
// within one unit is sequential; only batch mode introduces concurrency,
// and the shared limiter serializes the actual calls.
type Orchestrator struct {
	provider   Provider
	limiter    Limiter
	logger     Logger
	store      HistoryStore
	aggregator *aggregate.Service
	opts       Options
	retry      llmhttp.RetryConfig
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(deps Dependencies, opts Options) *Orchestrator {
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = chunk.DefaultMaxChunkBytes
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryAttempts > 10 {
		opts.RetryAttempts = 10
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}

	logger := deps.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	retry := llmhttp.DefaultRetryConfig()
	retry.MaxAttempts = opts.RetryAttempts

	return &Orchestrator{
		provider:   deps.Provider,
		limiter:    deps.Limiter,
		logger:     logger,
		store:      deps.Store,
		aggregator: aggregate.NewService(),
		opts:       opts,
		retry:      retry,
	}
}

// Review runs one unit through the full pipeline and returns the
// aggregated canonical review. It never fails: model-side trouble of any
// kind degrades to a fallback review instead.
func (o *Orchestrator) Review(ctx context.Context, unit domain.ReviewUnit) domain.CanonicalReview {
	chunks := chunk.Split(unit.Content, o.opts.MaxChunkBytes)
	o.logger.LogInfo(ctx, "review started", map[string]interface{}{
		"unit":       unit.Identity.Key,
		"size_bytes": unit.SizeBytes,
		"chunks":     len(chunks),
	})

	reviews := make([]domain.CanonicalReview, 0, len(chunks))
	weights := make([]int, 0, len(chunks))
	for _, c := range chunks {
		review := o.reviewChunk(ctx, unit.Identity, c)
		reviews = append(reviews, review)
		weights = append(weights, chunkWeight(c))
	}

	result := o.aggregator.Combine(reviews, weights, sourceStats(chunks, unit.SizeBytes))

	if o.store != nil {
		if err := o.store.SaveReview(ctx, unit.Identity, result); err != nil {
			o.logger.LogWarning(ctx, "failed to persist review", map[string]interface{}{
				"unit":  unit.Identity.Key,
				"error": err.Error(),
			})
		}
	}
	return result
}

// reviewChunk dispatches one chunk and, when the result looks cut short,
// spends one re-attempt at half the byte budget before accepting what it
// has. The half-budget pass never recurses further.
func (o *Orchestrator) reviewChunk(ctx context.Context, identity domain.Identity, c chunk.Chunk) domain.CanonicalReview {
	review := o.dispatchAndParse(ctx, identity, c)
	if !schema.LooksTruncated(review) {
		return review
	}

	o.logger.LogWarning(ctx, "review chunk looks truncated, retrying at half budget", map[string]interface{}{
		"unit":  identity.Key,
		"chunk": c.Index,
	})

	halfBudget := o.opts.MaxChunkBytes / 2
	subChunks := chunk.Split(c.Content, halfBudget)
	subReviews := make([]domain.CanonicalReview, 0, len(subChunks))
	subWeights := make([]int, 0, len(subChunks))
	for _, sub := range subChunks {
		subReviews = append(subReviews, o.dispatchAndParse(ctx, identity, sub))
		subWeights = append(subWeights, chunkWeight(sub))
	}
	retried := o.aggregator.Combine(subReviews, subWeights, sourceStats(subChunks, len(c.Content)))

	// Still truncated: accept the re-attempt anyway rather than loop.
	if schema.LooksTruncated(retried) {
		o.logger.LogWarning(ctx, "review chunk still truncated after retry, accepting result", map[string]interface{}{
			"unit":  identity.Key,
			"chunk": c.Index,
		})
	}
	return retried
}

// dispatchAndParse is the per-chunk happy path: rate-limited dispatch with
// retry, then normalize, parse, sanitize. Dispatch failure after the retry
// budget becomes a fallback review here and goes no further.
func (o *Orchestrator) dispatchAndParse(ctx context.Context, identity domain.Identity, c chunk.Chunk) domain.CanonicalReview {
	prompt := BuildPrompt(PromptInput{
		Identity:     identity,
		Chunk:        c,
		Instructions: o.opts.Instructions,
	})

	raw, err := o.dispatch(ctx, prompt)
	if err != nil {
		o.logger.LogWarning(ctx, "dispatch failed, using fallback review", map[string]interface{}{
			"unit":     identity.Key,
			"chunk":    c.Index,
			"provider": o.provider.Name(),
			"error":    llmhttp.RedactURLSecrets(err.Error()),
		})
		return domain.FallbackReview(fmt.Sprintf("provider %s failed after %d attempts: %s",
			o.provider.Name(), o.retry.MaxAttempts, llmhttp.RedactURLSecrets(err.Error())))
	}

	return schema.Parse(normalize.Normalize(raw), raw)
}

// dispatch wraps one prompt's provider call in the retry loop. The limiter
// gates every attempt, so retries count against the global call budget too.
func (o *Orchestrator) dispatch(ctx context.Context, prompt string) (string, error) {
	var raw string
	err := llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		if err := o.limiter.Acquire(ctx); err != nil {
			return err
		}
		var callErr error
		raw, callErr = o.provider.Send(ctx, prompt, o.opts.MaxOutputTokens)
		return callErr
	}, o.retry)
	return raw, err
}

// chunkWeight values a chunk by the number of files it covers, when known.
func chunkWeight(c chunk.Chunk) int {
	if len(c.SourceFiles) > 0 {
		return len(c.SourceFiles)
	}
	return 1
}

// sourceStats totals the chunks' file coverage for the aggregate summary
// prefix. Chunks partition their source, so file counts add up.
func sourceStats(chunks []chunk.Chunk, sizeBytes int) aggregate.SourceStats {
	files := 0
	for _, c := range chunks {
		files += len(c.SourceFiles)
	}
	return aggregate.SourceStats{Files: files, SizeBytes: sizeBytes}
}
