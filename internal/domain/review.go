package domain

import (
	"strings"
)

// Severity classifies how serious an issue is.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Issue categories. CategorySystem is reserved for synthetic issues the
// pipeline itself generates (fallbacks, dispatch failures); model output is
// never coerced into it.
const (
	CategorySecurity      = "security"
	CategoryPerformance   = "performance"
	CategoryQuality       = "quality"
	CategoryStyle         = "style"
	CategoryTesting       = "testing"
	CategoryDocumentation = "documentation"
	CategoryAccessibility = "accessibility"
	CategoryDependencies  = "dependencies"
	CategorySystem        = "system"
)

// Schema caps. Every CanonicalReview that leaves this package respects them.
const (
	MaxIssues     = 20
	MaxListItems  = 15
	MaxFieldChars = 5000

	DefaultScore      = 5
	DefaultConfidence = 3
)

// Issue is a single finding within a review. Severity and Category are
// always members of the enums above once the issue has passed through
// SanitizeIssue.
type Issue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
	Category    string `json:"category"`
	Citation    string `json:"citation"`
	AutoFixable bool   `json:"autoFixable"`
}

// Key returns the composite identity used to de-duplicate issues when
// aggregating reviews.
func (i Issue) Key() string {
	return i.Severity + "|" + i.Description
}

// CanonicalReview is the fixed-shape result every pipeline path converges
// to, success and fallback alike. List fields are never nil after
// Sanitize, so downstream renderers need no nil checks.
type CanonicalReview struct {
	Score         int      `json:"score"`
	Confidence    int      `json:"confidence"`
	Summary       string   `json:"summary"`
	Issues        []Issue  `json:"issues"`
	Suggestions   []string `json:"suggestions"`
	Security      []string `json:"security"`
	Performance   []string `json:"performance"`
	Dependencies  []string `json:"dependencies"`
	Accessibility []string `json:"accessibility"`
	Sources       []string `json:"sources"`
}

// FallbackSummary is the recognizable summary carried by every fallback
// review so reports can distinguish placeholder results from real ones.
const FallbackSummary = "Automated review could not be completed; this is a fallback result."

// FallbackReview returns the schema-valid placeholder used whenever the
// pipeline cannot obtain a usable model result. The reason lands in a single
// synthetic system-category issue.
func FallbackReview(reason string) CanonicalReview {
	if reason == "" {
		reason = "no reviewable result was produced"
	}
	return Sanitize(CanonicalReview{
		Score:      DefaultScore,
		Confidence: 1,
		Summary:    FallbackSummary,
		Issues: []Issue{
			{
				Severity:    SeverityMedium,
				Category:    CategorySystem,
				Description: "Review pipeline fallback: " + reason,
				Suggestion:  "Re-run the review; if the failure persists, check provider configuration and rate limits.",
			},
		},
	})
}

// CoerceSeverity maps arbitrary model vocabulary onto the severity enum,
// defaulting to medium. Matching is case-insensitive and tolerant of
// surrounding whitespace.
func CoerceSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SeverityCritical, "blocker":
		return SeverityCritical
	case SeverityHigh, "major":
		return SeverityHigh
	case SeverityMedium, "moderate":
		return SeverityMedium
	case SeverityLow, "minor", "info", "informational":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// SeverityRank orders severities for sorting, highest first (0).
func SeverityRank(s string) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// CoerceCategory maps arbitrary model vocabulary onto the category enum,
// defaulting to quality. The system category is deliberately unreachable
// from here.
func CoerceCategory(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case CategorySecurity, "vulnerability":
		return CategorySecurity
	case CategoryPerformance, "perf":
		return CategoryPerformance
	case CategoryQuality, "correctness", "bug", "maintainability":
		return CategoryQuality
	case CategoryStyle, "formatting":
		return CategoryStyle
	case CategoryTesting, "tests", "test":
		return CategoryTesting
	case CategoryDocumentation, "docs", "doc":
		return CategoryDocumentation
	case CategoryAccessibility, "a11y":
		return CategoryAccessibility
	case CategoryDependencies, "dependency", "deps":
		return CategoryDependencies
	default:
		return CategoryQuality
	}
}

// ClampScore clamps v into [1,10], substituting def when v is zero (the
// unmarshal zero value, i.e. the field was absent or unusable).
func ClampScore(v, def int) int {
	if v == 0 {
		return def
	}
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// SanitizeText truncates s to MaxFieldChars, strips control characters and
// escapes angle brackets so review text can be embedded in HTML-adjacent
// reports without further treatment.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	count := 0
	for _, r := range s {
		if count >= MaxFieldChars {
			break
		}
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			continue
		case r == '<':
			b.WriteString("&lt;")
		case r == '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
		count++
	}
	return b.String()
}

// SanitizeIssue coerces every field of an issue into the schema. Synthetic
// system-category issues keep their category; everything else goes through
// enum coercion.
func SanitizeIssue(i Issue) Issue {
	category := i.Category
	if category != CategorySystem {
		category = CoerceCategory(category)
	}
	return Issue{
		Severity:    CoerceSeverity(i.Severity),
		Description: SanitizeText(i.Description),
		Suggestion:  SanitizeText(i.Suggestion),
		Category:    category,
		Citation:    SanitizeText(i.Citation),
		AutoFixable: i.AutoFixable,
	}
}

// Sanitize applies every field-level coercion rule and cap, returning a
// review that satisfies the schema invariants regardless of input. It is the
// single chokepoint: both the validator and the aggregator finish through it.
func Sanitize(r CanonicalReview) CanonicalReview {
	out := CanonicalReview{
		Score:      ClampScore(r.Score, DefaultScore),
		Confidence: ClampScore(r.Confidence, DefaultConfidence),
		Summary:    SanitizeText(r.Summary),
	}

	out.Issues = make([]Issue, 0, min(len(r.Issues), MaxIssues))
	for _, issue := range r.Issues {
		if len(out.Issues) >= MaxIssues {
			break
		}
		out.Issues = append(out.Issues, SanitizeIssue(issue))
	}

	out.Suggestions = sanitizeList(r.Suggestions)
	out.Security = sanitizeList(r.Security)
	out.Performance = sanitizeList(r.Performance)
	out.Dependencies = sanitizeList(r.Dependencies)
	out.Accessibility = sanitizeList(r.Accessibility)
	out.Sources = sanitizeList(r.Sources)
	return out
}

func sanitizeList(items []string) []string {
	out := make([]string, 0, min(len(items), MaxListItems))
	for _, item := range items {
		if len(out) >= MaxListItems {
			break
		}
		cleaned := SanitizeText(item)
		if strings.TrimSpace(cleaned) == "" {
			continue
		}
		out = append(out, cleaned)
	}
	return out
}
