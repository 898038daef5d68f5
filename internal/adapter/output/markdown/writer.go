package markdown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

type clock func() string

// Writer renders reviews into Markdown files.
type Writer struct {
	now clock
}

// NewWriter constructs a Markdown writer with a timestamp supplier.
func NewWriter(now clock) *Writer {
	return &Writer{now: now}
}

// Write persists a Markdown artifact to disk and returns its path.
func (w *Writer) Write(ctx context.Context, artifact domain.ReviewArtifact) (string, error) {
	if err := os.MkdirAll(artifact.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s_%s.md",
		sanitise(artifact.Repository),
		sanitise(artifact.Target),
		sanitise(artifact.Provider),
		w.now(),
	)
	path := filepath.Join(artifact.OutputDir, filename)

	content := buildContent(artifact)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}

	return path, nil
}

func buildContent(artifact domain.ReviewArtifact) string {
	var builder strings.Builder
	caser := cases.Title(language.English)
	review := artifact.Review

	builder.WriteString("# Code Review Report\n\n")
	builder.WriteString(fmt.Sprintf("- Provider: %s (%s)\n", artifact.Provider, artifact.Model))
	builder.WriteString(fmt.Sprintf("- Target: %s\n", artifact.Target))
	builder.WriteString(fmt.Sprintf("- Score: %d/10\n", review.Score))
	builder.WriteString(fmt.Sprintf("- Confidence: %d/10\n\n", review.Confidence))

	builder.WriteString("## Summary\n\n")
	builder.WriteString(review.Summary)
	builder.WriteString("\n\n")

	if len(review.Issues) == 0 {
		builder.WriteString("No issues reported.\n")
	} else {
		builder.WriteString("## Issues\n\n")
		for _, issue := range review.Issues {
			builder.WriteString(fmt.Sprintf("### %s (%s)\n", issue.Description, caser.String(issue.Severity)))
			builder.WriteString(fmt.Sprintf("- Category: %s\n", issue.Category))
			if issue.Suggestion != "" {
				builder.WriteString(fmt.Sprintf("- Suggestion: %s\n", issue.Suggestion))
			}
			builder.WriteString("\n")
		}
	}

	writeList(&builder, "Suggestions", review.Suggestions)
	writeList(&builder, "Security", review.Security)
	writeList(&builder, "Performance", review.Performance)
	writeList(&builder, "Dependencies", review.Dependencies)
	writeList(&builder, "Accessibility", review.Accessibility)
	writeList(&builder, "Sources", review.Sources)

	return builder.String()
}

func writeList(builder *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	builder.WriteString(fmt.Sprintf("## %s\n\n", heading))
	for _, item := range items {
		builder.WriteString(fmt.Sprintf("- %s\n", item))
	}
	builder.WriteString("\n")
}

func sanitise(value string) string {
	if value == "" {
		return "unknown"
	}
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, string(filepath.Separator), "-")
	value = strings.ReplaceAll(value, " ", "-")
	value = strings.ReplaceAll(value, "..", "-")
	return value
}
