package normalize

import (
	"regexp"
	"strings"
)

var (
	// A line holding one syntactically complete field: "key": followed by a
	// scalar, a one-line array, or an empty object, optionally comma-ended.
	completeFieldRe = regexp.MustCompile(
		`^\s*"[^"]*"\s*:\s*(?:"(?:[^"\\]|\\.)*"|-?\d+(?:\.\d+)?|true|false|null|\[[^\[\]]*\]|\{\s*\})\s*,?\s*$`)

	// A bare closing brace or bracket, optionally comma-ended.
	closingLineRe = regexp.MustCompile(`^\s*[}\]]+\s*,?\s*$`)

	// An opening line: "key": { or "key": [ or a lone { / [.
	openingLineRe = regexp.MustCompile(`^\s*(?:"[^"]*"\s*:\s*)?[{\[]\s*$`)
)

// Repair recovers a JSON document that was cut off mid-field by an output
// ceiling. It scans lines from the end backward for the last one that looks
// syntactically complete, drops everything after it, strips a dangling
// comma, and closes the braces and brackets left open. Valid JSON comes
// back semantically unchanged.
//
// This is a truncation heuristic scoped to the review schema, not a general
// JSON fixer; input that is corrupted in other ways still fails the parse
// and falls through to heuristic extraction.
func Repair(text string) string {
	text = strings.TrimRight(text, " \t\n\r")
	if text == "" {
		return text
	}

	if balanced, open := scanBrackets(text); len(open) == 0 && !balanced.inString {
		return text
	}

	lines := strings.Split(text, "\n")
	cut := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if lineComplete(lines[i]) {
			cut = i
			break
		}
	}

	var kept string
	if cut >= 0 {
		kept = strings.Join(lines[:cut+1], "\n")
	} else {
		// No complete line at all: fall back to closing whatever the raw
		// text left open, terminating a mid-string cut first.
		kept = text
	}

	kept = strings.TrimRight(kept, " \t\n\r")
	kept = strings.TrimSuffix(kept, ",")

	state, open := scanBrackets(kept)
	var b strings.Builder
	b.WriteString(kept)
	if state.inString {
		b.WriteByte('"')
	}
	for i := len(open) - 1; i >= 0; i-- {
		switch open[i] {
		case '{':
			b.WriteByte('}')
		case '[':
			b.WriteByte(']')
		}
	}
	return b.String()
}

func lineComplete(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if completeFieldRe.MatchString(line) ||
		closingLineRe.MatchString(line) ||
		openingLineRe.MatchString(line) {
		return true
	}
	// A line that is balanced on its own and ends at a value boundary is
	// also a safe cut point, e.g. a whole issue object on one line.
	state, open := scanBrackets(line)
	if state.inString || len(open) > 0 {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case ',', '}', ']', '"':
		return true
	}
	return false
}

type scanState struct {
	inString bool
}

// scanBrackets walks the text tracking string state and returns the stack
// of unmatched opening braces/brackets in opening order.
func scanBrackets(s string) (scanState, []byte) {
	var open []byte
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
			inString = !inString
		case inString:
			// String contents never affect nesting.
		case c == '{' || c == '[':
			open = append(open, c)
		case c == '}':
			if len(open) > 0 && open[len(open)-1] == '{' {
				open = open[:len(open)-1]
			}
		case c == ']':
			if len(open) > 0 && open[len(open)-1] == '[' {
				open = open[:len(open)-1]
			}
		}
	}
	return scanState{inString: inString}, open
}
