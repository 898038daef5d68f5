package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Name:            "anthropic",
			Model:           "claude-sonnet-4-20250514",
			APIKey:          "sk-test",
			MaxOutputTokens: 8192,
			Timeout:         "120s",
		},
		RateLimit: RateLimitConfig{MaxPerMinute: 30, MinInterval: "1s"},
		Review:    ReviewConfig{RetryAttempts: 3, BatchSize: 4, MaxChunkBytes: 100000},
		Output:    OutputConfig{Directory: "out", Format: "markdown"},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "human", RedactAPIKeys: true},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"static provider needs no key", func(c *Config) {
			c.Provider.Name = "static"
			c.Provider.APIKey = ""
		}, ""},
		{"unknown provider", func(c *Config) { c.Provider.Name = "oracle" }, "provider.name"},
		{"anthropic without key", func(c *Config) { c.Provider.APIKey = "" }, "provider.apiKey"},
		{"anthropic without model", func(c *Config) { c.Provider.Model = "" }, "provider.model"},
		{"zero max tokens", func(c *Config) { c.Provider.MaxOutputTokens = 0 }, "provider.maxOutputTokens"},
		{"bad provider timeout", func(c *Config) { c.Provider.Timeout = "soon" }, "provider.timeout"},
		{"zero rate limit", func(c *Config) { c.RateLimit.MaxPerMinute = 0 }, "rateLimit.maxPerMinute"},
		{"negative rate limit", func(c *Config) { c.RateLimit.MaxPerMinute = -5 }, "rateLimit.maxPerMinute"},
		{"bad min interval", func(c *Config) { c.RateLimit.MinInterval = "fast" }, "rateLimit.minInterval"},
		{"negative min interval", func(c *Config) { c.RateLimit.MinInterval = "-1s" }, "rateLimit.minInterval"},
		{"zero retry attempts", func(c *Config) { c.Review.RetryAttempts = 0 }, "review.retryAttempts"},
		{"excessive retry attempts", func(c *Config) { c.Review.RetryAttempts = 11 }, "review.retryAttempts"},
		{"zero batch size", func(c *Config) { c.Review.BatchSize = 0 }, "review.batchSize"},
		{"negative chunk budget", func(c *Config) { c.Review.MaxChunkBytes = -1 }, "review.maxChunkBytes"},
		{"bad output format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"bad log level", func(c *Config) { c.Observability.Logging.Level = "verbose" }, "observability.logging.level"},
		{"bad log format", func(c *Config) { c.Observability.Logging.Format = "xml" }, "observability.logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}

func TestMinIntervalDuration(t *testing.T) {
	assert.Equal(t, time.Second, RateLimitConfig{MinInterval: "1s"}.MinIntervalDuration())
	assert.Equal(t, time.Duration(0), RateLimitConfig{}.MinIntervalDuration())
	assert.Equal(t, time.Duration(0), RateLimitConfig{MinInterval: "bogus"}.MinIntervalDuration())
}

func TestTimeoutDuration(t *testing.T) {
	def := 60 * time.Second
	assert.Equal(t, 30*time.Second, ProviderConfig{Timeout: "30s"}.TimeoutDuration(def))
	assert.Equal(t, def, ProviderConfig{}.TimeoutDuration(def))
	assert.Equal(t, def, ProviderConfig{Timeout: "nope"}.TimeoutDuration(def))
}
