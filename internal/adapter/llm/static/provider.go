package static

import "context"

const providerName = "static"

const defaultResponse = `{
  "score": 7,
  "confidence": 8,
  "summary": "Static review: the change is small and self-contained.",
  "issues": [
    {
      "severity": "low",
      "category": "style",
      "description": "This is a canned issue from the static provider.",
      "suggestion": "Run against a real provider for actual feedback."
    }
  ],
  "suggestions": ["Run against a real provider for actual feedback."],
  "security": []
}`

// Provider implements the usecase Provider port with a fixed response.
type Provider struct {
	response string
}

// NewProvider constructs a static Provider returning the default response.
func NewProvider() *Provider {
	return &Provider{response: defaultResponse}
}

// NewProviderWithResponse constructs a static Provider returning the given
// text verbatim, so tests can script malformed or truncated output.
func NewProviderWithResponse(response string) *Provider {
	return &Provider{response: response}
}

// Name identifies the provider.
func (p *Provider) Name() string {
	return providerName
}

// Send returns the canned response regardless of prompt.
func (p *Provider) Send(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.response, nil
}
