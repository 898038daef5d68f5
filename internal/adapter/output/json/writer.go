package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// Writer persists reviews to disk as JSON files.
type Writer struct {
	now func() string
}

// NewWriter creates a new JSON writer.
func NewWriter(now func() string) *Writer {
	return &Writer{now: now}
}

// Write persists a review to disk and returns the file path.
func (w *Writer) Write(ctx context.Context, artifact domain.ReviewArtifact) (string, error) {
	outputDir := filepath.Join(artifact.OutputDir,
		fmt.Sprintf("%s_%s", sanitise(artifact.Repository), sanitise(artifact.Target)), w.now())
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filePath := filepath.Join(outputDir, fmt.Sprintf("review-%s.json", sanitise(artifact.Provider)))

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create json file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(artifact.Review); err != nil {
		return "", fmt.Errorf("failed to encode review to json: %w", err)
	}

	return filePath, nil
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
