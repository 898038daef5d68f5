package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

const shortHashLen = 8

// Engine reads review units out of a git repository, backed by go-git.
// A unit key is either a commit-ish or a "base..target" range.
type Engine struct {
	repoDir string
}

// NewEngine constructs a Git engine for the provided repository directory.
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

func (e *Engine) open() (*goGit.Repository, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", e.repoDir, err)
	}
	return repo, nil
}

// Unit returns the review unit for a commit hash or a "base..target" range.
func (e *Engine) Unit(ctx context.Context, key string) (domain.ReviewUnit, error) {
	if base, target, ok := strings.Cut(key, ".."); ok {
		return e.RangeDiff(ctx, base, target)
	}
	return e.CommitDiff(ctx, key)
}

// CommitDiff builds a review unit for one commit: its diff against the
// first parent, with the commit message as leading context. Root commits
// diff against the empty tree.
func (e *Engine) CommitDiff(ctx context.Context, ref string) (domain.ReviewUnit, error) {
	repo, err := e.open()
	if err != nil {
		return domain.ReviewUnit{}, err
	}

	commit, err := resolveCommit(repo, ref)
	if err != nil {
		return domain.ReviewUnit{}, fmt.Errorf("resolve ref %s: %w", ref, err)
	}

	var parent *object.Commit
	if commit.NumParents() > 0 {
		parent, err = commit.Parent(0)
		if err != nil {
			return domain.ReviewUnit{}, fmt.Errorf("resolve parent of %s: %w", ref, err)
		}
	}

	patchText, err := patchBetween(ctx, parent, commit)
	if err != nil {
		return domain.ReviewUnit{}, err
	}

	short := shortHash(commit.Hash.String())
	subject := commitSubject(commit.Message)

	var b strings.Builder
	fmt.Fprintf(&b, "Commit: %s\n", commit.Hash.String())
	fmt.Fprintf(&b, "Author: %s <%s>\n", commit.Author.Name, commit.Author.Email)
	fmt.Fprintf(&b, "Date:   %s\n\n", commit.Author.When.Format("2006-01-02 15:04:05 -0700"))
	b.WriteString(strings.TrimSpace(commit.Message))
	b.WriteString("\n\n")
	b.WriteString(patchText)

	return domain.NewReviewUnit(b.String(), domain.Identity{
		Key:   short,
		Label: short + " " + subject,
	}), nil
}

// RangeDiff builds a review unit for the cumulative diff between two refs.
func (e *Engine) RangeDiff(ctx context.Context, baseRef, targetRef string) (domain.ReviewUnit, error) {
	repo, err := e.open()
	if err != nil {
		return domain.ReviewUnit{}, err
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return domain.ReviewUnit{}, fmt.Errorf("resolve base ref %s: %w", baseRef, err)
	}
	targetCommit, err := resolveCommit(repo, targetRef)
	if err != nil {
		return domain.ReviewUnit{}, fmt.Errorf("resolve target ref %s: %w", targetRef, err)
	}

	patchText, err := patchBetween(ctx, baseCommit, targetCommit)
	if err != nil {
		return domain.ReviewUnit{}, err
	}

	key := fmt.Sprintf("%s..%s", shortHash(baseCommit.Hash.String()), shortHash(targetCommit.Hash.String()))
	label := fmt.Sprintf("%s..%s", baseRef, targetRef)

	return domain.NewReviewUnit(patchText, domain.Identity{Key: key, Label: label}), nil
}

// UncommittedDiff builds a review unit for working tree changes against the
// given base ref. go-git's worktree diff misses staged renames, so this path
// shells out to the git CLI.
func (e *Engine) UncommittedDiff(ctx context.Context, baseRef string) (domain.ReviewUnit, error) {
	if baseRef == "" {
		baseRef = "HEAD"
	}

	patchText, err := runGitCommand(ctx, e.repoDir, "diff", baseRef)
	if err != nil {
		return domain.ReviewUnit{}, fmt.Errorf("diff working tree against %s: %w", baseRef, err)
	}
	if strings.TrimSpace(patchText) == "" {
		return domain.ReviewUnit{}, fmt.Errorf("no uncommitted changes against %s", baseRef)
	}

	key := "uncommitted"
	label := fmt.Sprintf("uncommitted changes vs %s", baseRef)
	return domain.NewReviewUnit(patchText, domain.Identity{Key: key, Label: label}), nil
}

// RecentCommits lists up to n commits reachable from HEAD, newest first.
func (e *Engine) RecentCommits(ctx context.Context, n int) ([]domain.CommitInfo, error) {
	repo, err := e.open()
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&goGit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	commits := make([]domain.CommitInfo, 0, n)
	for len(commits) < n {
		commit, err := iter.Next()
		if err != nil {
			break
		}
		commits = append(commits, domain.CommitInfo{
			Hash:    commit.Hash.String(),
			Author:  commit.Author.Name,
			Date:    commit.Author.When,
			Message: commit.Message,
		})
	}
	return commits, nil
}

// CurrentBranch returns the name of the checked-out branch.
func (e *Engine) CurrentBranch(ctx context.Context) (string, error) {
	repo, err := e.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if name := head.Name(); name.IsBranch() {
		return name.Short(), nil
	}
	return "", fmt.Errorf("detached HEAD")
}

func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}

// patchBetween renders the unified diff from one commit to another.
// A nil from commit diffs against the empty tree.
func patchBetween(ctx context.Context, from, to *object.Commit) (string, error) {
	var fromTree *object.Tree
	if from != nil {
		tree, err := from.Tree()
		if err != nil {
			return "", fmt.Errorf("read tree: %w", err)
		}
		fromTree = tree
	}
	toTree, err := to.Tree()
	if err != nil {
		return "", fmt.Errorf("read tree: %w", err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return "", fmt.Errorf("diff trees: %w", err)
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return "", fmt.Errorf("encode patch: %w", err)
	}
	return patch.String(), nil
}

func runGitCommand(ctx context.Context, repoDir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoDir}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), msg, err)
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}

func shortHash(hash string) string {
	if len(hash) > shortHashLen {
		return hash[:shortHashLen]
	}
	return hash
}

func commitSubject(message string) string {
	subject, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(subject)
}
