package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment variables.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "rp"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "RP"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return expandEnvVars(cfg), nil
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings,
// so secrets can live in the environment instead of the config file.
func expandEnvVars(cfg Config) Config {
	cfg.Provider.Name = expandEnvString(cfg.Provider.Name)
	cfg.Provider.Model = expandEnvString(cfg.Provider.Model)
	cfg.Provider.APIKey = expandEnvString(cfg.Provider.APIKey)
	cfg.Provider.Timeout = expandEnvString(cfg.Provider.Timeout)

	cfg.RateLimit.MinInterval = expandEnvString(cfg.RateLimit.MinInterval)

	cfg.Review.Instructions = expandEnvString(cfg.Review.Instructions)

	cfg.Git.RepositoryDir = expandEnvString(cfg.Git.RepositoryDir)

	cfg.Output.Directory = expandEnvString(cfg.Output.Directory)
	cfg.Output.Format = expandEnvString(cfg.Output.Format)

	cfg.Store.Path = expandEnvString(cfg.Store.Path)

	cfg.Observability.Logging.Level = expandEnvString(cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = expandEnvString(cfg.Observability.Logging.Format)

	return cfg
}

var (
	bracedVarRe = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	bareVarRe   = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
)

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
// Unset variables are left verbatim so misconfiguration stays visible.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	s = bracedVarRe.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})

	s = bareVarRe.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[1:]); val != "" {
			return val
		}
		return match
	})

	return s
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.name", "anthropic")
	v.SetDefault("provider.model", "claude-sonnet-4-20250514")
	v.SetDefault("provider.maxOutputTokens", 8192)
	v.SetDefault("provider.timeout", "120s")

	v.SetDefault("rateLimit.maxPerMinute", 30)
	v.SetDefault("rateLimit.minInterval", "1s")

	v.SetDefault("review.retryAttempts", 3)
	v.SetDefault("review.batchSize", 4)
	// Zero derives the budget from the provider token ceiling at wiring time.
	v.SetDefault("review.maxChunkBytes", 0)

	v.SetDefault("git.repositoryDir", ".")

	v.SetDefault("output.directory", "out")
	v.SetDefault("output.format", "markdown")

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", defaultStorePath())

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "human")
	v.SetDefault("observability.logging.redactAPIKeys", true)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./reviews.db"
	}
	return filepath.Join(home, ".config", "rp", "reviews.db")
}
