package schema_test

import (
	"strings"
	"testing"

	"github.com/bkyoung/review-pipeline/internal/domain"
	"github.com/bkyoung/review-pipeline/internal/normalize"
	"github.com/bkyoung/review-pipeline/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseRaw mirrors the pipeline path: normalize first, then parse with the
// raw text available for heuristic fallback.
func parseRaw(raw string) domain.CanonicalReview {
	return schema.Parse(normalize.Normalize(raw), raw)
}

func assertSchemaValid(t *testing.T, review domain.CanonicalReview) {
	t.Helper()
	assert.GreaterOrEqual(t, review.Score, 1)
	assert.LessOrEqual(t, review.Score, 10)
	assert.GreaterOrEqual(t, review.Confidence, 1)
	assert.LessOrEqual(t, review.Confidence, 10)
	assert.LessOrEqual(t, len(review.Issues), domain.MaxIssues)
	assert.LessOrEqual(t, len(review.Suggestions), domain.MaxListItems)
	for _, issue := range review.Issues {
		assert.Contains(t, []string{
			domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow,
		}, issue.Severity)
	}
}

func TestParse_CleanJSON(t *testing.T) {
	review := parseRaw(`{"score": 8, "confidence": 7, "summary": "Looks fine.", "issues": []}`)

	assert.Equal(t, 8, review.Score)
	assert.Equal(t, 7, review.Confidence)
	assert.Equal(t, "Looks fine.", review.Summary)
	assert.Empty(t, review.Issues)
	// Missing list fields fill in as empty arrays, not nil.
	assert.NotNil(t, review.Suggestions)
	assert.NotNil(t, review.Security)
	assert.NotNil(t, review.Sources)
}

func TestParse_FullReview(t *testing.T) {
	raw := `{
  "score": 6,
  "confidence": 9,
  "summary": "Mixed bag.",
  "issues": [
    {"severity": "HIGH", "description": "SQL built by string concat", "suggestion": "use placeholders", "category": "Security", "citation": "db.go:40", "autoFixable": false}
  ],
  "suggestions": ["add tests"],
  "security": ["parameterize queries"],
  "performance": [],
  "dependencies": ["bump lib"],
  "accessibility": [],
  "sources": ["db.go"]
}`
	review := parseRaw(raw)

	require.Len(t, review.Issues, 1)
	assert.Equal(t, domain.SeverityHigh, review.Issues[0].Severity)
	assert.Equal(t, domain.CategorySecurity, review.Issues[0].Category)
	assert.Equal(t, []string{"add tests"}, review.Suggestions)
	assert.Equal(t, []string{"bump lib"}, review.Dependencies)
}

func TestParse_MarkdownWrapped(t *testing.T) {
	raw := "Here is the review:\n\n```json\n{\"score\": 9, \"confidence\": 8, \"summary\": \"Clean change.\"}\n```\nHope this helps!"
	review := parseRaw(raw)

	assert.Equal(t, 9, review.Score)
	assert.Equal(t, "Clean change.", review.Summary)
}

func TestParse_TruncatedFencedResponse(t *testing.T) {
	// Fenced response cut off in the middle of a string value.
	raw := "```json\n{\"score\": 9, \"confidence\": 8, \"summary\": \"Good"
	review := parseRaw(raw)

	assertSchemaValid(t, review)
	assert.Equal(t, 9, review.Score)
	assert.Equal(t, 8, review.Confidence)
}

func TestParse_TruncatedIssueList(t *testing.T) {
	raw := `{
  "score": 7,
  "confidence": 6,
  "summary": "Mostly fine.",
  "issues": [
    {"severity": "low", "description": "unused import", "suggestion": "remove it", "category": "style", "citation": "", "autoFixable": true},
    {"severity": "medium", "description": "missing err`
	review := parseRaw(raw)

	assertSchemaValid(t, review)
	assert.Equal(t, 7, review.Score)
	require.NotEmpty(t, review.Issues)
	assert.Equal(t, "unused import", review.Issues[0].Description)
}

func TestParse_IsTotal(t *testing.T) {
	inputs := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"whitespace", "   \n\t  "},
		{"random bytes", string([]byte{0x01, 0xff, 0xfe, 0x88, 0x00, 0x42})},
		{"plain prose", "The code looks okay to me, nothing to report here."},
		{"lone brace", "{"},
		{"deep nesting", strings.Repeat("[", 50)},
		{"html", "<html><body>502 Bad Gateway</body></html>"},
		{"valid but wrong shape", `{"totally": ["unrelated", "document"]}`},
		{"number only", "8"},
	}

	for _, tt := range inputs {
		t.Run(tt.name, func(t *testing.T) {
			review := parseRaw(tt.raw)
			assertSchemaValid(t, review)
		})
	}
}

func TestParse_HeuristicExtraction(t *testing.T) {
	raw := `I could not produce JSON this time.
Overall score: 4, confidence: 6.
There is a security vulnerability in the login handler.
Also a bug in the retry loop that causes double sends.
The error handling in parser.go swallows failures.`
	review := parseRaw(raw)

	assert.Equal(t, 4, review.Score)
	assert.Equal(t, 6, review.Confidence)
	assert.GreaterOrEqual(t, len(review.Issues), 2)
	assert.LessOrEqual(t, len(review.Issues), 5)

	var foundSecurity bool
	for _, issue := range review.Issues {
		assert.Equal(t, domain.SeverityMedium, issue.Severity)
		if issue.Category == domain.CategorySecurity {
			foundSecurity = true
		}
	}
	assert.True(t, foundSecurity, "security keyword line should map to the security category")
}

func TestParse_HeuristicDefaultsWhenNothingFound(t *testing.T) {
	review := parseRaw("xx")

	assert.Equal(t, domain.DefaultScore, review.Score)
	assert.Equal(t, domain.DefaultConfidence, review.Confidence)
	assert.NotEmpty(t, review.Summary)
}

func TestParse_FlexibleFieldTypes(t *testing.T) {
	raw := `{
  "score": "8",
  "confidence": 6.7,
  "summary": "Decent.",
  "issues": ["naming is inconsistent"],
  "suggestions": [{"description": "split the function"}, 42]
}`
	review := parseRaw(raw)

	assert.Equal(t, 8, review.Score)
	assert.Equal(t, 7, review.Confidence, "6.7 rounds to 7")
	require.Len(t, review.Issues, 1)
	assert.Equal(t, "naming is inconsistent", review.Issues[0].Description)
	assert.Equal(t, domain.SeverityMedium, review.Issues[0].Severity)
	assert.Contains(t, review.Suggestions, "split the function")
	assert.Contains(t, review.Suggestions, "42")
}

func TestParse_OutOfRangeScoresClamped(t *testing.T) {
	review := parseRaw(`{"score": 95, "confidence": -2, "summary": "Odd numbers."}`)
	assert.Equal(t, 10, review.Score)
	assert.Equal(t, 1, review.Confidence)
}

func TestLooksTruncated(t *testing.T) {
	tests := []struct {
		name   string
		review domain.CanonicalReview
		want   bool
	}{
		{
			"complete summary",
			domain.CanonicalReview{Summary: "Everything here is fine and complete."},
			false,
		},
		{
			"summary cut mid-sentence",
			domain.CanonicalReview{Summary: "The change looks good but the second half of"},
			true,
		},
		{
			"short string never counts",
			domain.CanonicalReview{Summary: "LGTM"},
			false,
		},
		{
			"issue description cut",
			domain.CanonicalReview{
				Summary: "Fine overall, see issues.",
				Issues:  []domain.Issue{{Description: "the handler leaks the connection when the"}},
			},
			true,
		},
		{
			"issue suggestion cut",
			domain.CanonicalReview{
				Summary: "Fine overall, see issues.",
				Issues:  []domain.Issue{{Description: "Leak.", Suggestion: "close the body in a defer right after the"}},
			},
			true,
		},
		{
			"suggestions entry cut",
			domain.CanonicalReview{
				Summary:     "Fine overall, see issues.",
				Suggestions: []string{"consider extracting the retry logic into a"},
			},
			true,
		},
		{
			"exclamation counts as terminal",
			domain.CanonicalReview{Summary: "Really nice work on this refactoring effort!"},
			false,
		},
		{
			"documented false positive: long identifier",
			domain.CanonicalReview{Summary: "internal/adapter/llm/http/retry_with_backoff"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, schema.LooksTruncated(tt.review))
		})
	}
}
