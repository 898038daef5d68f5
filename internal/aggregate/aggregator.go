// Package aggregate merges per-chunk (or per-commit) canonical reviews
// into one, deterministically.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// Service implements the review merging logic.
type Service struct{}

// NewService creates a new aggregation service.
func NewService() *Service {
	return &Service{}
}

// SourceStats describes the reviewed source for the merged summary prefix.
// Zero values mean the caller does not know and the prefix reports only
// the part count.
type SourceStats struct {
	Files     int
	SizeBytes int
}

// Combine merges reviews into a single CanonicalReview. Scores and
// confidences are weight-averaged and rounded to nearest; weights default
// to 1 where missing or non-positive. Summaries concatenate with a prefix
// carrying the part count and the source's file and byte counts. List
// fields take the deduplicated union of all inputs, capped to the schema
// limits. Inputs are not mutated.
//
// Zero reviews produce the fallback review; a single review comes back
// unchanged.
func (s *Service) Combine(reviews []domain.CanonicalReview, weights []int, stats SourceStats) domain.CanonicalReview {
	switch len(reviews) {
	case 0:
		return domain.FallbackReview("no reviews to aggregate")
	case 1:
		return domain.Sanitize(reviews[0])
	}

	totalWeight := 0
	scoreSum := 0
	confidenceSum := 0
	for i, review := range reviews {
		w := 1
		if i < len(weights) && weights[i] > 0 {
			w = weights[i]
		}
		totalWeight += w
		scoreSum += review.Score * w
		confidenceSum += review.Confidence * w
	}

	merged := domain.CanonicalReview{
		Score:      roundDiv(scoreSum, totalWeight),
		Confidence: roundDiv(confidenceSum, totalWeight),
		Summary:    combineSummaries(reviews, stats),
		Issues:     combineIssues(reviews),
	}

	merged.Suggestions = combineLists(reviews, func(r domain.CanonicalReview) []string { return r.Suggestions })
	merged.Security = combineLists(reviews, func(r domain.CanonicalReview) []string { return r.Security })
	merged.Performance = combineLists(reviews, func(r domain.CanonicalReview) []string { return r.Performance })
	merged.Dependencies = combineLists(reviews, func(r domain.CanonicalReview) []string { return r.Dependencies })
	merged.Accessibility = combineLists(reviews, func(r domain.CanonicalReview) []string { return r.Accessibility })
	merged.Sources = combineLists(reviews, func(r domain.CanonicalReview) []string { return r.Sources })

	return domain.Sanitize(merged)
}

func roundDiv(sum, total int) int {
	if total <= 0 {
		return 0
	}
	return (sum + total/2) / total
}

func combineSummaries(reviews []domain.CanonicalReview, stats SourceStats) string {
	var parts []string
	for i, review := range reviews {
		trimmed := strings.TrimSpace(review.Summary)
		if trimmed == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[Part %d/%d] %s", i+1, len(reviews), trimmed))
	}
	header := fmt.Sprintf("Aggregated review of %d parts", len(reviews))
	if stats.Files > 0 {
		header += fmt.Sprintf(" covering %d file(s)", stats.Files)
	}
	if stats.SizeBytes > 0 {
		header += fmt.Sprintf(", %d bytes", stats.SizeBytes)
	}
	header += "."
	if len(parts) == 0 {
		return header
	}
	return header + "\n\n" + strings.Join(parts, "\n\n")
}

// combineIssues unions issues across reviews, deduplicated by the
// (severity, description) composite key. When the union overflows the
// schema cap, higher-severity issues win; within a severity the original
// order holds.
func combineIssues(reviews []domain.CanonicalReview) []domain.Issue {
	seen := make(map[string]bool)
	var issues []domain.Issue
	for _, review := range reviews {
		for _, issue := range review.Issues {
			key := issue.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			issues = append(issues, issue)
		}
	}

	if len(issues) > domain.MaxIssues {
		sort.SliceStable(issues, func(i, j int) bool {
			return domain.SeverityRank(issues[i].Severity) < domain.SeverityRank(issues[j].Severity)
		})
		issues = issues[:domain.MaxIssues]
	}
	return issues
}

func combineLists(reviews []domain.CanonicalReview, pick func(domain.CanonicalReview) []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, review := range reviews {
		for _, item := range pick(review) {
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	if len(out) > domain.MaxListItems {
		out = out[:domain.MaxListItems]
	}
	return out
}
