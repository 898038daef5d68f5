package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the full application configuration.
type Config struct {
	Provider      ProviderConfig      `yaml:"provider"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit"`
	Review        ReviewConfig        `yaml:"review"`
	Git           GitConfig           `yaml:"git"`
	Output        OutputConfig        `yaml:"output"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ProviderConfig configures the LLM provider.
type ProviderConfig struct {
	Name            string `yaml:"name"`   // anthropic, static
	Model           string `yaml:"model"`
	APIKey          string `yaml:"apiKey"`
	MaxOutputTokens int    `yaml:"maxOutputTokens"`
	Timeout         string `yaml:"timeout"`
}

// RateLimitConfig bounds outbound request pacing.
type RateLimitConfig struct {
	MaxPerMinute int    `yaml:"maxPerMinute"`
	MinInterval  string `yaml:"minInterval"`
}

// ReviewConfig configures the review pipeline behavior.
type ReviewConfig struct {
	RetryAttempts int    `yaml:"retryAttempts"`
	BatchSize     int    `yaml:"batchSize"`
	MaxChunkBytes int    `yaml:"maxChunkBytes"`
	Instructions  string `yaml:"instructions"`
}

type GitConfig struct {
	RepositoryDir string `yaml:"repositoryDir"`
}

// OutputConfig controls where and how reports are written.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Format    string `yaml:"format"` // markdown, json, both
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures request/response logging.
type LoggingConfig struct {
	Level         string `yaml:"level"`         // debug, info, error
	Format        string `yaml:"format"`        // json, human
	RedactAPIKeys bool   `yaml:"redactAPIKeys"`
}

// ValidationError marks configuration the program cannot start with.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func validationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks invariants the pipeline depends on. A non-nil result
// means the process should exit rather than run with surprising behavior.
func (c Config) Validate() error {
	switch c.Provider.Name {
	case "anthropic":
		if c.Provider.APIKey == "" {
			return validationError("provider.apiKey", "required for provider %q", c.Provider.Name)
		}
		if c.Provider.Model == "" {
			return validationError("provider.model", "required for provider %q", c.Provider.Name)
		}
	case "static":
	default:
		return validationError("provider.name", "unknown provider %q", c.Provider.Name)
	}

	if c.Provider.MaxOutputTokens <= 0 {
		return validationError("provider.maxOutputTokens", "must be positive, got %d", c.Provider.MaxOutputTokens)
	}
	if c.Provider.Timeout != "" {
		if _, err := time.ParseDuration(c.Provider.Timeout); err != nil {
			return validationError("provider.timeout", "not a duration: %v", err)
		}
	}

	if c.RateLimit.MaxPerMinute <= 0 {
		return validationError("rateLimit.maxPerMinute", "must be positive, got %d", c.RateLimit.MaxPerMinute)
	}
	if c.RateLimit.MinInterval != "" {
		d, err := time.ParseDuration(c.RateLimit.MinInterval)
		if err != nil {
			return validationError("rateLimit.minInterval", "not a duration: %v", err)
		}
		if d < 0 {
			return validationError("rateLimit.minInterval", "must not be negative")
		}
	}

	if c.Review.RetryAttempts < 1 || c.Review.RetryAttempts > 10 {
		return validationError("review.retryAttempts", "must be between 1 and 10, got %d", c.Review.RetryAttempts)
	}
	if c.Review.BatchSize <= 0 {
		return validationError("review.batchSize", "must be positive, got %d", c.Review.BatchSize)
	}
	// Zero means derive the chunk budget from the provider's token ceiling.
	if c.Review.MaxChunkBytes < 0 {
		return validationError("review.maxChunkBytes", "must not be negative, got %d", c.Review.MaxChunkBytes)
	}

	switch c.Output.Format {
	case "markdown", "json", "both":
	default:
		return validationError("output.format", "must be markdown, json, or both, got %q", c.Output.Format)
	}

	switch strings.ToLower(c.Observability.Logging.Level) {
	case "debug", "info", "error":
	default:
		return validationError("observability.logging.level", "must be debug, info, or error, got %q", c.Observability.Logging.Level)
	}
	switch strings.ToLower(c.Observability.Logging.Format) {
	case "json", "human":
	default:
		return validationError("observability.logging.format", "must be json or human, got %q", c.Observability.Logging.Format)
	}

	return nil
}

// MinIntervalDuration returns the parsed pacing interval.
// Call Validate first; malformed values fall back to zero.
func (c RateLimitConfig) MinIntervalDuration() time.Duration {
	if c.MinInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.MinInterval)
	if err != nil {
		return 0
	}
	return d
}

// TimeoutDuration returns the parsed provider timeout, or def when unset.
func (c ProviderConfig) TimeoutDuration(def time.Duration) time.Duration {
	if c.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return def
	}
	return d
}
