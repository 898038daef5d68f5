package observability

import (
	"context"

	llmhttp "github.com/bkyoung/review-pipeline/internal/adapter/llm/http"
	"github.com/bkyoung/review-pipeline/internal/usecase/review"
)

// ReviewLogger adapts llmhttp.Logger to the review.Logger interface, so the
// orchestrator shares one structured logging backend with the HTTP clients.
type ReviewLogger struct {
	logger llmhttp.Logger
}

// NewReviewLogger creates a new review logger adapter.
func NewReviewLogger(logger llmhttp.Logger) review.Logger {
	return &ReviewLogger{logger: logger}
}

// LogWarning logs a warning message with structured fields.
func (l *ReviewLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogWarning(ctx, message, fields)
}

// LogInfo logs an informational message with structured fields.
func (l *ReviewLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogInfo(ctx, message, fields)
}
