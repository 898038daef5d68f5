package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bkyoung/review-pipeline/internal/adapter/llm"
	llmhttp "github.com/bkyoung/review-pipeline/internal/adapter/llm/http"
)

const providerName = "anthropic"

// Client abstracts the Anthropic HTTP client behaviour we need.
type Client interface {
	Call(ctx context.Context, prompt string, options CallOptions) (*APIResponse, error)
	Model() string
}

// Provider implements the usecase Provider port on top of the Messages API.
// It returns the model's raw text; normalization and schema validation
// happen downstream.
type Provider struct {
	client Client
	logger llmhttp.Logger
	apiKey string
}

// NewProvider constructs a Provider around an Anthropic client.
func NewProvider(client Client, logger llmhttp.Logger, apiKey string) *Provider {
	if logger == nil {
		logger = llmhttp.NopLogger{}
	}
	return &Provider{
		client: client,
		logger: logger,
		apiKey: apiKey,
	}
}

// Name identifies the provider in logs and fallback reviews.
func (p *Provider) Name() string {
	return providerName
}

// Send dispatches one prompt and returns the raw response text.
func (p *Provider) Send(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("anthropic client missing")
	}

	start := time.Now()
	p.logger.LogRequest(ctx, llmhttp.RequestLog{
		Provider:     providerName,
		Model:        p.client.Model(),
		Timestamp:    start,
		PromptChars:  len(prompt),
		PromptTokens: llm.EstimateTokens(prompt),
		APIKey:       p.apiKey,
	})

	resp, err := p.client.Call(ctx, prompt, CallOptions{MaxTokens: maxOutputTokens})
	if err != nil {
		errLog := llmhttp.ErrorLog{
			Provider:  providerName,
			Model:     p.client.Model(),
			Timestamp: time.Now(),
			Duration:  time.Since(start),
			Error:     err,
		}
		var typed *llmhttp.Error
		if errors.As(err, &typed) {
			errLog.StatusCode = typed.StatusCode
			errLog.Retryable = typed.Retryable
		}
		p.logger.LogError(ctx, errLog)
		return "", err
	}

	p.logger.LogResponse(ctx, llmhttp.ResponseLog{
		Provider:      providerName,
		Model:         resp.Model,
		Timestamp:     time.Now(),
		Duration:      time.Since(start),
		ResponseChars: len(resp.Text),
		StatusCode:    resp.StatusCode,
		StopReason:    resp.StopReason,
		Preview:       llmhttp.TruncateForLogging(resp.Text),
	})

	return resp.Text, nil
}
