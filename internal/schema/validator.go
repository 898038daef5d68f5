// Package schema turns candidate JSON text into the canonical review
// shape. Parse is total: whatever the model produced, a schema-valid
// review comes back.
package schema

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/bkyoung/review-pipeline/internal/domain"
	"github.com/bkyoung/review-pipeline/internal/normalize"
)

// Parse converts a normalized JSON candidate into a CanonicalReview. The
// strict parse runs first; on failure the candidate goes through truncation
// repair and is parsed again; if that also fails, the review is assembled by
// heuristic extraction from the raw (pre-normalization) text. Every path
// finishes with domain.Sanitize, so the result always satisfies the schema
// invariants.
func Parse(candidate, raw string) domain.CanonicalReview {
	if review, ok := tryParse(candidate); ok {
		return domain.Sanitize(review)
	}

	if review, ok := tryParse(normalize.Repair(candidate)); ok {
		return domain.Sanitize(review)
	}

	return domain.Sanitize(extractHeuristically(raw))
}

func tryParse(text string) (domain.CanonicalReview, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.CanonicalReview{}, false
	}

	var wire wireReview
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return domain.CanonicalReview{}, false
	}
	return wire.toDomain(), true
}

// wireReview mirrors the schema the model is asked to emit, with tolerant
// field types: scores may arrive as floats or quoted numbers, list entries
// as strings or objects. Tolerance here keeps a usable response from being
// thrown away over one oddly-typed field.
type wireReview struct {
	Score         flexInt     `json:"score"`
	Confidence    flexInt     `json:"confidence"`
	Summary       string      `json:"summary"`
	Issues        []wireIssue `json:"issues"`
	Suggestions   flexStrings `json:"suggestions"`
	Security      flexStrings `json:"security"`
	Performance   flexStrings `json:"performance"`
	Dependencies  flexStrings `json:"dependencies"`
	Accessibility flexStrings `json:"accessibility"`
	Sources       flexStrings `json:"sources"`
}

func (w wireReview) toDomain() domain.CanonicalReview {
	issues := make([]domain.Issue, 0, len(w.Issues))
	for _, wi := range w.Issues {
		issues = append(issues, domain.Issue{
			Severity:    wi.Severity,
			Description: wi.Description,
			Suggestion:  wi.Suggestion,
			Category:    wi.Category,
			Citation:    wi.Citation,
			AutoFixable: wi.AutoFixable,
		})
	}
	return domain.CanonicalReview{
		Score:         int(w.Score),
		Confidence:    int(w.Confidence),
		Summary:       w.Summary,
		Issues:        issues,
		Suggestions:   w.Suggestions,
		Security:      w.Security,
		Performance:   w.Performance,
		Dependencies:  w.Dependencies,
		Accessibility: w.Accessibility,
		Sources:       w.Sources,
	}
}

type wireIssue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
	Category    string `json:"category"`
	Citation    string `json:"citation"`
	AutoFixable bool   `json:"autoFixable"`
}

// UnmarshalJSON accepts either an issue object or a bare string, which some
// models emit for simple findings.
func (w *wireIssue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		w.Description = s
		return nil
	}

	type alias wireIssue
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*w = wireIssue(obj)
	return nil
}

// flexInt accepts a JSON number (ints and floats, rounded) or a quoted
// number. Anything else decodes to zero, which Sanitize later replaces with
// the field default.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = 0

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(int(n + 0.5))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = flexInt(int(v + 0.5))
		}
		return nil
	}

	// Wrong type altogether; keep the zero value rather than failing the
	// whole document.
	return nil
}

// flexStrings accepts an array whose entries may be strings, numbers, or
// objects carrying a "description" field. Unusable entries are skipped.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	*f = nil

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		// A lone string instead of an array.
		var s string
		if err := json.Unmarshal(data, &s); err == nil && s != "" {
			*f = flexStrings{s}
		}
		return nil
	}

	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			*f = append(*f, s)
			continue
		}
		var obj struct {
			Description string `json:"description"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Description != "" {
			*f = append(*f, obj.Description)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			*f = append(*f, strconv.FormatFloat(n, 'f', -1, 64))
		}
	}
	return nil
}

var (
	scoreRe      = regexp.MustCompile(`(?i)"?score"?\s*[:=]\s*([0-9]+(?:\.[0-9]+)?)`)
	confidenceRe = regexp.MustCompile(`(?i)"?confidence"?\s*[:=]\s*([0-9]+(?:\.[0-9]+)?)`)
	sentenceRe   = regexp.MustCompile(`[^.!?{}\n]{10,}[.!?]`)
	keywordRe    = regexp.MustCompile(`(?i)\b(error|problem|issue|vulnerability|security|bug)\b`)
	securityRe   = regexp.MustCompile(`(?i)\b(vulnerability|security)\b`)
)

const maxHeuristicIssues = 5

// extractHeuristically assembles a review straight from the raw text with
// no JSON parsing at all: a regex hunt for numeric score and confidence,
// the first real sentence as the summary, and up to five generic issues
// from keyword-bearing lines.
func extractHeuristically(raw string) domain.CanonicalReview {
	review := domain.CanonicalReview{
		Score:      extractNumber(scoreRe, raw),
		Confidence: extractNumber(confidenceRe, raw),
		Summary:    extractSummary(raw),
	}

	for _, line := range strings.Split(raw, "\n") {
		if len(review.Issues) >= maxHeuristicIssues {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !keywordRe.MatchString(trimmed) {
			continue
		}
		category := domain.CategoryQuality
		if securityRe.MatchString(trimmed) {
			category = domain.CategorySecurity
		}
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		review.Issues = append(review.Issues, domain.Issue{
			Severity:    domain.SeverityMedium,
			Category:    category,
			Description: trimmed,
		})
	}

	return review
}

func extractNumber(re *regexp.Regexp, raw string) int {
	matches := re.FindStringSubmatch(raw)
	if len(matches) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0
	}
	return int(v + 0.5)
}

func extractSummary(raw string) string {
	if sentence := sentenceRe.FindString(raw); sentence != "" {
		return strings.TrimSpace(sentence)
	}
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); len(trimmed) >= 10 {
			return trimmed
		}
	}
	return "Review summary could not be extracted from the model response."
}
