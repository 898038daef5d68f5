package review

import (
	"context"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// Provider is the model-call port. Send delivers one chunk's prompt and
// returns the raw response text; failures should be typed llmhttp errors
// so the retry loop can classify them.
type Provider interface {
	Name() string
	Send(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
}

// Limiter gates every outbound call, including retries. Implementations
// must serialize concurrent acquisition.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Logger receives pipeline-level events. The orchestrator logs every
// fallback and truncation re-attempt so degraded results are visible.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// HistoryStore persists aggregated reviews for later comparison. Optional;
// a nil store disables persistence.
type HistoryStore interface {
	SaveReview(ctx context.Context, identity domain.Identity, review domain.CanonicalReview) error
}

// UnitSource fetches a review unit by key (a commit hash in batch mode).
// Fetches may run concurrently; implementations must be safe for that.
type UnitSource interface {
	Unit(ctx context.Context, key string) (domain.ReviewUnit, error)
}

type nopLogger struct{}

func (nopLogger) LogInfo(context.Context, string, map[string]interface{})    {}
func (nopLogger) LogWarning(context.Context, string, map[string]interface{}) {}
