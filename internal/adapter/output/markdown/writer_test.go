package markdown_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bkyoung/review-pipeline/internal/adapter/output/markdown"
	"github.com/bkyoung/review-pipeline/internal/domain"
)

func testReview() domain.CanonicalReview {
	return domain.CanonicalReview{
		Score:      7,
		Confidence: 8,
		Summary:    "Summary text",
		Issues: []domain.Issue{
			{
				Severity:    "medium",
				Category:    "bug",
				Description: "Bug description",
				Suggestion:  "Fix it",
			},
		},
		Suggestions: []string{"Refactor the loop"},
		Security:    []string{"No injection risks found"},
	}
}

func TestWriterProducesDeterministicMarkdown(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writer := markdown.NewWriter(func() string {
		return "2026-01-01T00-00-00Z"
	})

	path, err := writer.Write(ctx, domain.ReviewArtifact{
		OutputDir:  dir,
		Repository: "repo",
		Target:     "abc123..def456",
		Provider:   "anthropic",
		Model:      "claude-sonnet-4-20250514",
		Review:     testReview(),
	})
	if err != nil {
		t.Fatalf("writer returned error: %v", err)
	}

	if filepath.Base(path) != "repo_abc123-def456_anthropic_2026-01-01T00-00-00Z.md" {
		t.Fatalf("unexpected filename: %s", filepath.Base(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	text := string(content)
	for _, want := range []string{
		"# Code Review Report",
		"- Score: 7/10",
		"- Confidence: 8/10",
		"## Summary",
		"Summary text",
		"### Bug description (Medium)",
		"- Suggestion: Fix it",
		"## Suggestions",
		"- Refactor the loop",
		"## Security",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected markdown to contain %q:\n%s", want, text)
		}
	}
}

func TestWriterNoIssues(t *testing.T) {
	dir := t.TempDir()
	writer := markdown.NewWriter(func() string { return "ts" })

	review := testReview()
	review.Issues = nil
	review.Suggestions = nil
	review.Security = nil

	path, err := writer.Write(context.Background(), domain.ReviewArtifact{
		OutputDir: dir,
		Review:    review,
	})
	if err != nil {
		t.Fatalf("writer returned error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if !strings.Contains(string(content), "No issues reported.") {
		t.Fatalf("expected no-issues marker:\n%s", content)
	}
	if strings.Contains(string(content), "## Suggestions") {
		t.Fatalf("empty sections should be omitted:\n%s", content)
	}

	if filepath.Base(path) != "unknown_unknown_unknown_ts.md" {
		t.Fatalf("empty artifact fields should sanitise to unknown: %s", filepath.Base(path))
	}
}
