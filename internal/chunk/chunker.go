// Package chunk splits oversized review input into bounded pieces that can
// be dispatched to a model independently and re-aggregated afterwards.
package chunk

import (
	"strings"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// DefaultMaxChunkBytes is the byte budget used when a caller passes a
// non-positive budget.
const DefaultMaxChunkBytes = 100_000

// FileMarkerPrefix frames concatenated file contents for whole-repository
// review. The chunker treats each marker as a section boundary.
const FileMarkerPrefix = "--- FILE: "

// Chunk is one size-bounded slice of a review input. Chunks are created
// once, consumed once, never mutated.
type Chunk struct {
	Index          int
	Total          int
	Content        string
	EstimatedBytes int
	SourceFiles    []string
}

// Split divides content into chunks of at most maxChunkBytes each.
//
// When the content carries recognizable per-file boundaries (git diff
// headers or FileMarkerPrefix markers), whole file-sections are packed
// greedily: a chunk is flushed when the next section would overflow the
// budget, and a single section that alone exceeds the budget becomes its own
// chunk rather than being split. Without boundaries the content is split on
// line boundaries under the same budget.
//
// The result always has at least one chunk, even when the input already
// fits, and is deterministic for identical input and budget.
func Split(content string, maxChunkBytes int) []Chunk {
	if maxChunkBytes <= 0 {
		maxChunkBytes = DefaultMaxChunkBytes
	}

	if len(content) <= maxChunkBytes {
		return finalize([]Chunk{{Content: content, SourceFiles: sectionFiles(content)}})
	}

	sections := splitSections(content)
	if len(sections) > 1 {
		return finalize(packSections(sections, maxChunkBytes))
	}
	return finalize(splitByLines(content, maxChunkBytes))
}

type section struct {
	content string
	file    string
}

// splitSections cuts content at per-file boundaries. A section runs from one
// boundary line to the next; leading unbounded text becomes its own section
// with no file attribution.
func splitSections(content string) []section {
	lines := strings.SplitAfter(content, "\n")

	var sections []section
	var current strings.Builder
	currentFile := ""
	seenBoundary := false

	flush := func() {
		if current.Len() == 0 {
			return
		}
		sections = append(sections, section{content: current.String(), file: currentFile})
		current.Reset()
	}

	for _, line := range lines {
		if file, ok := boundaryFile(line); ok {
			flush()
			currentFile = file
			seenBoundary = true
		}
		current.WriteString(line)
	}
	flush()

	if !seenBoundary {
		return []section{{content: content}}
	}
	return sections
}

// boundaryFile reports whether a line starts a new per-file section and, if
// so, which file it belongs to.
func boundaryFile(line string) (string, bool) {
	trimmed := strings.TrimRight(line, "\n")

	if rest, ok := strings.CutPrefix(trimmed, "diff --git "); ok {
		// "diff --git a/path b/path": attribute the section to the new side.
		fields := strings.Fields(rest)
		if len(fields) >= 2 {
			return strings.TrimPrefix(fields[len(fields)-1], "b/"), true
		}
		return "", true
	}

	if rest, ok := strings.CutPrefix(trimmed, FileMarkerPrefix); ok {
		rest = strings.TrimSuffix(rest, "---")
		// Strip a trailing "(size, mtime)" annotation if present.
		if idx := strings.Index(rest, " ("); idx >= 0 {
			rest = rest[:idx]
		}
		return strings.TrimSpace(rest), true
	}

	return "", false
}

func packSections(sections []section, maxChunkBytes int) []Chunk {
	var chunks []Chunk
	var current strings.Builder
	var currentFiles []string

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Content: current.String(), SourceFiles: currentFiles})
		current.Reset()
		currentFiles = nil
	}

	for _, sec := range sections {
		if current.Len() > 0 && current.Len()+len(sec.content) > maxChunkBytes {
			flush()
		}
		current.WriteString(sec.content)
		if sec.file != "" {
			currentFiles = append(currentFiles, sec.file)
		}
	}
	flush()

	return chunks
}

// splitByLines is the fallback for unsegmented content. Lines are packed
// under the budget; a single line longer than the budget becomes its own
// chunk so the split never lands mid-line.
func splitByLines(content string, maxChunkBytes int) []Chunk {
	lines := strings.SplitAfter(content, "\n")

	var chunks []Chunk
	var current strings.Builder

	for _, line := range lines {
		if current.Len() > 0 && current.Len()+len(line) > maxChunkBytes {
			chunks = append(chunks, Chunk{Content: current.String()})
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, Chunk{Content: current.String()})
	}

	return chunks
}

func finalize(chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		chunks = []Chunk{{}}
	}
	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
		chunks[i].EstimatedBytes = len(chunks[i].Content)
	}
	return chunks
}

// sectionFiles lists the file attributions present in content, used to
// populate SourceFiles on a single-chunk result.
func sectionFiles(content string) []string {
	var files []string
	for _, line := range strings.SplitAfter(content, "\n") {
		if file, ok := boundaryFile(line); ok && file != "" {
			files = append(files, file)
		}
	}
	return files
}

// GroupFiles packs files into review groups bounded by both a file-count
// ceiling and a cumulative-byte ceiling, with the same greedy
// pack-then-flush policy as Split: a single file larger than the byte
// ceiling becomes its own group.
func GroupFiles(files []domain.SourceFile, maxFiles int, maxBytes int) [][]domain.SourceFile {
	if maxFiles <= 0 {
		maxFiles = 20
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChunkBytes
	}

	var groups [][]domain.SourceFile
	var current []domain.SourceFile
	currentBytes := 0

	for _, f := range files {
		overCount := len(current) >= maxFiles
		overBytes := len(current) > 0 && currentBytes+len(f.Content) > maxBytes
		if overCount || overBytes {
			groups = append(groups, current)
			current = nil
			currentBytes = 0
		}
		current = append(current, f)
		currentBytes += len(f.Content)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}
