package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bkyoung/review-pipeline/internal/domain"
	"github.com/bkyoung/review-pipeline/internal/usecase/review"
)

// ErrVersionRequested indicates the user requested the CLI version and no
// further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Reviewer runs the review pipeline over units.
type Reviewer interface {
	Review(ctx context.Context, unit domain.ReviewUnit) domain.CanonicalReview
	ReviewBatch(ctx context.Context, source review.UnitSource, keys []string) []review.BatchResult
}

// GitSource reads review units out of version control.
type GitSource interface {
	review.UnitSource
	RangeDiff(ctx context.Context, baseRef, targetRef string) (domain.ReviewUnit, error)
	UncommittedDiff(ctx context.Context, baseRef string) (domain.ReviewUnit, error)
	RecentCommits(ctx context.Context, n int) ([]domain.CommitInfo, error)
	CurrentBranch(ctx context.Context) (string, error)
}

// RepoSource reads review units from a directory tree.
type RepoSource interface {
	Units(ctx context.Context) ([]domain.ReviewUnit, error)
}

// ResultWriter persists one finished review and returns the paths written.
type ResultWriter func(ctx context.Context, artifact domain.ReviewArtifact) ([]string, error)

// HistoryReader lists previously stored reviews.
type HistoryReader interface {
	RecentSummaries(ctx context.Context, limit int) ([]string, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Reviewer      Reviewer
	Git           GitSource
	NewRepoSource func(root string) RepoSource
	Write         ResultWriter
	History       HistoryReader
	Args          Arguments
	DefaultOutput string
	DefaultRepo   string
	ProviderName  string
	ModelName     string
	Version       string

	// ShowProgress prints a line per unit before reviewing it. The host
	// enables this only when output goes to a terminal.
	ShowProgress bool
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "rp",
		Short: "Resilient LLM code review pipeline",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Run a code review",
	}
	reviewCmd.AddCommand(branchCommand(deps))
	reviewCmd.AddCommand(commitsCommand(deps))
	reviewCmd.AddCommand(repoCommand(deps))
	root.AddCommand(reviewCmd)
	root.AddCommand(historyCommand(deps))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	// Consumed by the host process before the command runs; declared here so
	// flag parsing accepts it.
	root.PersistentFlags().Bool("dry-run", false, "Use the canned static provider instead of calling the model")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func branchCommand(deps Dependencies) *cobra.Command {
	var baseRef string
	var targetRef string
	var outputDir string
	var detectTarget bool
	var uncommitted bool

	cmd := &cobra.Command{
		Use:   "branch [target]",
		Short: "Review a branch against a base reference",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				targetRef = args[0]
			}
			ctx := cmd.Context()
			if uncommitted {
				unit, err := deps.Git.UncommittedDiff(ctx, baseRef)
				if err != nil {
					return fmt.Errorf("build working tree diff: %w", err)
				}
				progress(cmd, deps, "reviewing %s", unit.Identity.Label)
				result := deps.Reviewer.Review(ctx, unit)
				return emitResult(cmd, deps, resolveOutput(outputDir, deps.DefaultOutput), unit, result)
			}
			if targetRef == "" && detectTarget {
				resolved, err := deps.Git.CurrentBranch(ctx)
				if err != nil {
					return fmt.Errorf("detect target branch: %w", err)
				}
				targetRef = resolved
			}
			if targetRef == "" {
				return fmt.Errorf("target branch not specified; pass as an argument, use --target, or enable --detect-target")
			}

			unit, err := deps.Git.RangeDiff(ctx, baseRef, targetRef)
			if err != nil {
				return fmt.Errorf("build branch diff: %w", err)
			}

			progress(cmd, deps, "reviewing %s", unit.Identity.Label)
			result := deps.Reviewer.Review(ctx, unit)
			return emitResult(cmd, deps, resolveOutput(outputDir, deps.DefaultOutput), unit, result)
		},
	}

	cmd.Flags().StringVar(&baseRef, "base", "main", "Base reference for the diff")
	cmd.Flags().StringVar(&targetRef, "target", "", "Target reference for the diff")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for review reports")
	cmd.Flags().BoolVar(&detectTarget, "detect-target", true, "Use the current branch when no target is given")
	cmd.Flags().BoolVar(&uncommitted, "uncommitted", false, "Review uncommitted working tree changes against the base")

	return cmd
}

func commitsCommand(deps Dependencies) *cobra.Command {
	var count int
	var outputDir string

	cmd := &cobra.Command{
		Use:   "commits [ref...]",
		Short: "Review individual commits",
		Long:  "Review the given commits, or the most recent ones when --count is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			keys := args
			if len(keys) == 0 {
				if count <= 0 {
					return fmt.Errorf("no commits specified; pass refs or use --count")
				}
				commits, err := deps.Git.RecentCommits(ctx, count)
				if err != nil {
					return fmt.Errorf("list recent commits: %w", err)
				}
				for _, c := range commits {
					keys = append(keys, c.Hash)
				}
			}
			if len(keys) == 0 {
				return fmt.Errorf("no commits found")
			}

			progress(cmd, deps, "reviewing %d commit(s)", len(keys))
			results := deps.Reviewer.ReviewBatch(ctx, deps.Git, keys)

			dir := resolveOutput(outputDir, deps.DefaultOutput)
			var failed int
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", r.Unit.Identity.Key, r.Err)
				}
				if err := emitResult(cmd, deps, dir, r.Unit, r.Review); err != nil {
					return err
				}
			}
			if failed > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d commits fell back to placeholder reviews\n", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Review the N most recent commits")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for review reports")

	return cmd
}

func repoCommand(deps Dependencies) *cobra.Command {
	var repoDir string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "repo [path]",
		Short: "Review a whole directory tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// DefaultRepo is a display label, not a path; the walker
			// defaults to the current directory.
			root := repoDir
			if len(args) > 0 {
				root = args[0]
			}
			if root == "" {
				root = "."
			}

			source := deps.NewRepoSource(root)
			units, err := source.Units(ctx)
			if err != nil {
				return fmt.Errorf("collect repository files: %w", err)
			}

			dir := resolveOutput(outputDir, deps.DefaultOutput)
			for _, unit := range units {
				progress(cmd, deps, "reviewing %s", unit.Identity.Label)
				result := deps.Reviewer.Review(ctx, unit)
				if err := emitResult(cmd, deps, dir, unit, result); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", "", "Directory tree to review")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for review reports")

	return cmd
}

func historyCommand(deps Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.History == nil {
				return fmt.Errorf("review history is not enabled")
			}
			summaries, err := deps.History.RecentSummaries(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no stored reviews")
				return nil
			}
			for _, line := range summaries {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum reviews to list")

	return cmd
}

func emitResult(cmd *cobra.Command, deps Dependencies, outputDir string, unit domain.ReviewUnit, result domain.CanonicalReview) error {
	target := unit.Identity.Label
	if target == "" {
		target = unit.Identity.Key
	}

	paths, err := deps.Write(cmd.Context(), domain.ReviewArtifact{
		OutputDir:  outputDir,
		Repository: deps.DefaultRepo,
		Target:     target,
		Provider:   deps.ProviderName,
		Model:      deps.ModelName,
		Review:     result,
	})
	if err != nil {
		return fmt.Errorf("write review for %s: %w", unit.Identity.Key, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: score %d/10, confidence %d/10, %d issue(s)\n",
		target, result.Score, result.Confidence, len(result.Issues))
	if result.Summary == domain.FallbackSummary {
		fmt.Fprintf(out, "  (fallback review: the model response could not be obtained)\n")
	}
	for _, path := range paths {
		fmt.Fprintf(out, "  wrote %s\n", path)
	}
	return nil
}

func progress(cmd *cobra.Command, deps Dependencies, format string, args ...interface{}) {
	if !deps.ShowProgress {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func resolveOutput(flagValue, defaultValue string) string {
	value := strings.TrimSpace(flagValue)
	if value != "" {
		return value
	}
	if defaultValue != "" {
		return defaultValue
	}
	return "out"
}
