package schema

import (
	"strings"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// minTruncationLength is the string length below which the heuristic stays
// silent: short strings are often identifiers or labels that legitimately
// carry no punctuation.
const minTruncationLength = 20

// LooksTruncated reports whether a review appears to have been cut short by
// the model's output ceiling. Evidence is any long string field that does
// not end in terminal punctuation, checked across the summary, every
// issue's description and suggestion, and every suggestions entry.
//
// Known false-positive source: a legitimately punctuation-free long string
// (a file path, a long identifier) also trips the check. Callers use the
// signal only to spend one extra half-budget attempt, so a misfire costs a
// call, never a wrong result.
func LooksTruncated(review domain.CanonicalReview) bool {
	if truncated(review.Summary) {
		return true
	}
	for _, issue := range review.Issues {
		if truncated(issue.Description) || truncated(issue.Suggestion) {
			return true
		}
	}
	for _, suggestion := range review.Suggestions {
		if truncated(suggestion) {
			return true
		}
	}
	return false
}

func truncated(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) <= minTruncationLength {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return false
	}
	return true
}
