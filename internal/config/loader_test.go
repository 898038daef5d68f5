package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvString(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret-key-123")
	t.Setenv("TEST_PATH", "/path/to/data")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "expand ${VAR} syntax",
			input:    "${TEST_API_KEY}",
			expected: "secret-key-123",
		},
		{
			name:     "expand $VAR syntax",
			input:    "$TEST_API_KEY",
			expected: "secret-key-123",
		},
		{
			name:     "expand in middle of string",
			input:    "key:${TEST_API_KEY}:end",
			expected: "key:secret-key-123:end",
		},
		{
			name:     "expand multiple variables",
			input:    "${TEST_API_KEY}:${TEST_PATH}",
			expected: "secret-key-123:/path/to/data",
		},
		{
			name:     "leave non-existent var unchanged",
			input:    "${NONEXISTENT_VAR}",
			expected: "${NONEXISTENT_VAR}",
		},
		{
			name:     "handle empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "handle string without variables",
			input:    "plain-text",
			expected: "plain-text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvString(tt.input))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Provider.Name)
	assert.Equal(t, 8192, cfg.Provider.MaxOutputTokens)
	assert.Equal(t, 30, cfg.RateLimit.MaxPerMinute)
	assert.Equal(t, "1s", cfg.RateLimit.MinInterval)
	assert.Equal(t, 3, cfg.Review.RetryAttempts)
	assert.Equal(t, 4, cfg.Review.BatchSize)
	assert.Equal(t, 0, cfg.Review.MaxChunkBytes)
	assert.Equal(t, "markdown", cfg.Output.Format)
	assert.Equal(t, "out", cfg.Output.Directory)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.True(t, cfg.Observability.Logging.RedactAPIKeys)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
provider:
  name: static
  model: static-v1
  maxOutputTokens: 2048
rateLimit:
  maxPerMinute: 10
review:
  retryAttempts: 5
  instructions: focus on error handling
output:
  format: both
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rp.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Provider.Name)
	assert.Equal(t, 2048, cfg.Provider.MaxOutputTokens)
	assert.Equal(t, 10, cfg.RateLimit.MaxPerMinute)
	assert.Equal(t, 5, cfg.Review.RetryAttempts)
	assert.Equal(t, "focus on error handling", cfg.Review.Instructions)
	assert.Equal(t, "both", cfg.Output.Format)
	assert.Equal(t, 4, cfg.Review.BatchSize, "unset fields keep defaults")
}

func TestLoadExpandsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("MY_SECRET_KEY", "sk-live-9876")

	dir := t.TempDir()
	yaml := `
provider:
  name: anthropic
  apiKey: ${MY_SECRET_KEY}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rp.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "sk-live-9876", cfg.Provider.APIKey)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RP_OUTPUT_FORMAT", "json")

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rp.yaml"), []byte("provider: [not: valid"), 0o644))

	_, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	assert.Error(t, err)
}
