// Package normalize turns raw model output into a best-effort JSON
// candidate. It strips wrapping noise and fixes the formatting mistakes
// models habitually make; it is textual cleanup, not a parser, and its
// output is not guaranteed to be valid JSON.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// Greedy fence match: first opening backticks to the LAST closing
	// backticks, so code fences nested inside JSON string values do not
	// end the match early.
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*([\\s\\S]*)```")

	// Bareword object keys, at line start or after { , [.
	barewordLineRe   = regexp.MustCompile(`(?m)^(\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	barewordInlineRe = regexp.MustCompile(`([{,[]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// Normalize applies every cleanup pass unconditionally and in order: fence
// stripping, leading-noise removal, single-quote conversion, bareword key
// quoting, trailing-comma removal. Already-valid JSON passes through
// semantically unchanged: the rewriting passes only touch text outside
// double-quoted strings.
func Normalize(raw string) string {
	s := stripFences(raw)
	s = trimToObject(s)
	s = normalizeQuotes(s)
	s = mapOutsideStrings(s, quoteBarewordKeys)
	s = mapOutsideStrings(s, func(seg string) string {
		return trailingCommaRe.ReplaceAllString(seg, "$1")
	})
	return strings.TrimSpace(s)
}

// stripFences unwraps a fenced code block. A complete fence pair is matched
// greedily. A lone marker is an opening fence whose closing partner was cut
// off, unless it follows the first '{', in which case it is a trailing
// fence after a complete body and everything from it on is dropped.
func stripFences(s string) string {
	if matches := fencedBlockRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	if idx := strings.Index(s, "```"); idx >= 0 {
		if brace := strings.Index(s, "{"); brace >= 0 && brace < idx {
			return strings.TrimSpace(s[:idx])
		}
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		return strings.TrimSpace(rest)
	}

	return strings.TrimSpace(s)
}

// trimToObject discards prose before the first '{' and a dangling fence
// marker after the JSON body.
func trimToObject(s string) string {
	if idx := strings.Index(s, "{"); idx > 0 {
		s = s[idx:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return s
}

// normalizeQuotes converts unescaped single quotes to double quotes, but
// only while outside an already-double-quoted string. Quote state is
// tracked character by character so apostrophes inside proper JSON strings
// survive.
func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '"':
			inString = !inString
			b.WriteRune(r)
		case r == '\'' && !inString:
			b.WriteRune('"')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func quoteBarewordKeys(s string) string {
	s = barewordLineRe.ReplaceAllString(s, `$1"$2":`)
	s = barewordInlineRe.ReplaceAllString(s, `$1"$2":`)
	return s
}

// mapOutsideStrings applies fn to each maximal segment of s that lies
// outside double-quoted strings, leaving string contents untouched.
func mapOutsideStrings(s string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(s))

	segStart := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			if inString {
				// Closing quote: emit the string verbatim, including quotes.
				b.WriteString(s[segStart : i+1])
				segStart = i + 1
			} else {
				// Opening quote: transform the segment before it.
				b.WriteString(fn(s[segStart:i]))
				segStart = i
			}
			inString = !inString
		}
	}

	tail := s[segStart:]
	if inString {
		b.WriteString(tail)
	} else {
		b.WriteString(fn(tail))
	}
	return b.String()
}
