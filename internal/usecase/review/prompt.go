package review

import (
	"fmt"
	"strings"

	"github.com/bkyoung/review-pipeline/internal/chunk"
	"github.com/bkyoung/review-pipeline/internal/domain"
)

// responseSchema is the JSON shape the model is instructed to emit. It
// matches the canonical review schema field for field; the validator
// tolerates deviations, but asking precisely costs nothing.
const responseSchema = `{
  "score": <integer 1-10, overall quality>,
  "confidence": <integer 1-10, your confidence in this review>,
  "summary": "<short prose summary>",
  "issues": [
    {
      "severity": "critical|high|medium|low",
      "description": "<what is wrong>",
      "suggestion": "<how to fix it>",
      "category": "security|performance|quality|style|testing|documentation|accessibility|dependencies",
      "citation": "<file:line or quote>",
      "autoFixable": <true|false>
    }
  ],
  "suggestions": ["<general improvement>"],
  "security": ["<security note>"],
  "performance": ["<performance note>"],
  "dependencies": ["<dependency note>"],
  "accessibility": ["<accessibility note>"],
  "sources": ["<file reviewed>"]
}`

// PromptInput carries everything the builder needs for one chunk.
type PromptInput struct {
	Identity     domain.Identity
	Chunk        chunk.Chunk
	Instructions string
}

// BuildPrompt renders the prompt for one chunk. Multi-chunk inputs are
// labelled with their position so the model reviews the part in front of
// it instead of guessing at the whole.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("You are an expert software engineer performing a code review.\n")
	b.WriteString("Respond with a single JSON object matching this schema, and nothing else:\n\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\n")

	if in.Instructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n\n", in.Instructions)
	}

	if in.Identity.Label != "" {
		fmt.Fprintf(&b, "Reviewing: %s\n", in.Identity.Label)
	}
	if in.Chunk.Total > 1 {
		fmt.Fprintf(&b, "This is part %d of %d; review only the content below.\n", in.Chunk.Index+1, in.Chunk.Total)
	}
	if len(in.Chunk.SourceFiles) > 0 {
		fmt.Fprintf(&b, "Files in this part: %s\n", strings.Join(in.Chunk.SourceFiles, ", "))
	}

	b.WriteString("\nContent:\n")
	b.WriteString(in.Chunk.Content)
	return b.String()
}
