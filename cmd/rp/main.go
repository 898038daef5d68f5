package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bkyoung/review-pipeline/internal/adapter/cli"
	"github.com/bkyoung/review-pipeline/internal/adapter/git"
	"github.com/bkyoung/review-pipeline/internal/adapter/llm"
	"github.com/bkyoung/review-pipeline/internal/adapter/llm/anthropic"
	llmhttp "github.com/bkyoung/review-pipeline/internal/adapter/llm/http"
	"github.com/bkyoung/review-pipeline/internal/adapter/llm/static"
	"github.com/bkyoung/review-pipeline/internal/adapter/observability"
	jsonwriter "github.com/bkyoung/review-pipeline/internal/adapter/output/json"
	"github.com/bkyoung/review-pipeline/internal/adapter/output/markdown"
	"github.com/bkyoung/review-pipeline/internal/adapter/repository"
	"github.com/bkyoung/review-pipeline/internal/adapter/store/sqlite"
	"github.com/bkyoung/review-pipeline/internal/config"
	"github.com/bkyoung/review-pipeline/internal/domain"
	"github.com/bkyoung/review-pipeline/internal/ratelimit"
	"github.com/bkyoung/review-pipeline/internal/usecase/review"
)

var version = "v0.1.0"

func main() {
	if err := run(); err != nil {
		log.Println(llmhttp.RedactURLSecrets(err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "rp",
		EnvPrefix:   "RP",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := buildLogger(cfg.Observability.Logging)

	// The provider is constructed before cobra parses flags, so the one
	// flag that changes the wiring is detected up front.
	if hasFlag(os.Args[1:], "--dry-run") {
		cfg.Provider.Name = "static"
	}

	provider, err := buildProvider(cfg.Provider, logger)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.RateLimit.MaxPerMinute, cfg.RateLimit.MinIntervalDuration())

	var historyStore *sqlite.Store
	if cfg.Store.Enabled {
		storeDir := filepath.Dir(cfg.Store.Path)
		if err := os.MkdirAll(storeDir, 0o755); err != nil {
			log.Printf("warning: failed to create store directory: %v", err)
		} else if s, err := sqlite.NewStore(cfg.Store.Path); err != nil {
			log.Printf("warning: failed to initialize store: %v", err)
		} else {
			s.SetProvider(provider.Name())
			historyStore = s
			defer historyStore.Close()
		}
	}

	deps := review.Dependencies{
		Provider: provider,
		Limiter:  limiter,
		Logger:   observability.NewReviewLogger(logger),
	}
	if historyStore != nil {
		deps.Store = historyStore
	}

	maxChunkBytes := cfg.Review.MaxChunkBytes
	if maxChunkBytes == 0 {
		maxChunkBytes = llm.ChunkBudgetBytes(cfg.Provider.MaxOutputTokens)
	}

	orchestrator := review.NewOrchestrator(deps, review.Options{
		MaxChunkBytes:   maxChunkBytes,
		MaxOutputTokens: cfg.Provider.MaxOutputTokens,
		RetryAttempts:   cfg.Review.RetryAttempts,
		BatchSize:       cfg.Review.BatchSize,
		Instructions:    cfg.Review.Instructions,
	})

	repoDir := cfg.Git.RepositoryDir
	if repoDir == "" {
		repoDir = "."
	}

	nowFunc := func() string {
		return time.Now().UTC().Format("20060102T150405Z")
	}

	cliDeps := cli.Dependencies{
		Reviewer: orchestrator,
		Git:      git.NewEngine(repoDir),
		NewRepoSource: func(root string) cli.RepoSource {
			return repository.NewWalker(root, maxChunkBytes)
		},
		Write:         buildResultWriter(cfg.Output.Format, nowFunc),
		DefaultOutput: cfg.Output.Directory,
		DefaultRepo:   repositoryName(repoDir),
		ProviderName:  provider.Name(),
		ModelName:     cfg.Provider.Model,
		Version:       version,
		ShowProgress:  review.IsOutputTerminal(),
	}
	if historyStore != nil {
		cliDeps.History = &historyReader{store: historyStore}
	}

	root := cli.NewRootCommand(cliDeps)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func buildLogger(cfg config.LoggingConfig) llmhttp.Logger {
	level := llmhttp.LogLevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = llmhttp.LogLevelDebug
	case "error":
		level = llmhttp.LogLevelError
	}

	format := llmhttp.LogFormatHuman
	if strings.ToLower(cfg.Format) == "json" {
		format = llmhttp.LogFormatJSON
	}

	return llmhttp.NewDefaultLogger(level, format, cfg.RedactAPIKeys)
}

func buildProvider(cfg config.ProviderConfig, logger llmhttp.Logger) (review.Provider, error) {
	switch cfg.Name {
	case "anthropic":
		client := anthropic.NewHTTPClient(cfg.APIKey, cfg.Model)
		client.SetTimeout(cfg.TimeoutDuration(120 * time.Second))
		return anthropic.NewProvider(client, logger, cfg.APIKey), nil
	case "static":
		return static.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// buildResultWriter fans artifacts out to the configured report formats.
func buildResultWriter(format string, now func() string) cli.ResultWriter {
	markdownWriter := markdown.NewWriter(now)
	jsonWriter := jsonwriter.NewWriter(now)

	return func(ctx context.Context, artifact domain.ReviewArtifact) ([]string, error) {
		var paths []string
		if format == "markdown" || format == "both" {
			path, err := markdownWriter.Write(ctx, artifact)
			if err != nil {
				return nil, err
			}
			paths = append(paths, path)
		}
		if format == "json" || format == "both" {
			path, err := jsonWriter.Write(ctx, artifact)
			if err != nil {
				return nil, err
			}
			paths = append(paths, path)
		}
		return paths, nil
	}
}

// historyReader renders stored reviews as one-line summaries for the CLI.
type historyReader struct {
	store *sqlite.Store
}

func (h *historyReader) RecentSummaries(ctx context.Context, limit int) ([]string, error) {
	stored, err := h.store.RecentReviews(ctx, limit)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(stored))
	for _, s := range stored {
		lines = append(lines, fmt.Sprintf("%s  %s  score %d/10  %d issue(s)  [%s]",
			s.CreatedAt.Format("2006-01-02 15:04"), s.UnitKey, s.Review.Score, len(s.Review.Issues), s.Provider))
	}
	return lines, nil
}

func repositoryName(repoDir string) string {
	abs, err := filepath.Abs(repoDir)
	if err != nil {
		return "unknown"
	}
	return filepath.Base(abs)
}

// hasFlag accepts both the bare and the --flag=value spellings of a
// boolean flag, matching how cobra parses them.
func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == flag {
			return true
		}
		if strings.HasPrefix(arg, flag+"=") {
			v, err := strconv.ParseBool(arg[len(flag)+1:])
			return err == nil && v
		}
	}
	return false
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "rp"))
	}
	return paths
}
