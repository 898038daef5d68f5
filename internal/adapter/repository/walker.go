package repository

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bkyoung/review-pipeline/internal/chunk"
	"github.com/bkyoung/review-pipeline/internal/domain"
)

const (
	// DefaultMaxFileBytes skips files too large to review usefully.
	DefaultMaxFileBytes = 256 * 1024

	// DefaultMaxGroupFiles caps how many files share one review unit.
	DefaultMaxGroupFiles = 20
)

var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	".idea":        true,
	".vscode":      true,
}

// Walker reads source files from a directory tree and frames them into
// review units. A unit key is "files:<index>" into the grouped walk order,
// which is deterministic for a given tree.
type Walker struct {
	root          string
	maxFileBytes  int64
	maxGroupFiles int
	maxGroupBytes int
}

// NewWalker constructs a Walker over the given root directory.
func NewWalker(root string, maxGroupBytes int) *Walker {
	if maxGroupBytes <= 0 {
		maxGroupBytes = chunk.DefaultMaxChunkBytes
	}
	return &Walker{
		root:          root,
		maxFileBytes:  DefaultMaxFileBytes,
		maxGroupFiles: DefaultMaxGroupFiles,
		maxGroupBytes: maxGroupBytes,
	}
}

// Units walks the tree and returns one review unit per file group.
func (w *Walker) Units(ctx context.Context) ([]domain.ReviewUnit, error) {
	files, err := w.collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no reviewable files under %s", w.root)
	}

	groups := chunk.GroupFiles(files, w.maxGroupFiles, w.maxGroupBytes)

	units := make([]domain.ReviewUnit, 0, len(groups))
	for i, group := range groups {
		var b strings.Builder
		for _, f := range group {
			fmt.Fprintf(&b, "%s%s (%d bytes, modified %s) ---\n",
				chunk.FileMarkerPrefix, f.Path, f.Size, f.ModTime.Format("2006-01-02"))
			b.WriteString(f.Content)
			if !strings.HasSuffix(f.Content, "\n") {
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
		units = append(units, domain.NewReviewUnit(b.String(), domain.Identity{
			Key:   fmt.Sprintf("files:%d", i),
			Label: groupLabel(group, i, len(groups)),
		}))
	}
	return units, nil
}

// Unit implements the review UnitSource port for "files:<index>" keys.
func (w *Walker) Unit(ctx context.Context, key string) (domain.ReviewUnit, error) {
	units, err := w.Units(ctx)
	if err != nil {
		return domain.ReviewUnit{}, err
	}
	for _, unit := range units {
		if unit.Identity.Key == key {
			return unit, nil
		}
	}
	return domain.ReviewUnit{}, fmt.Errorf("no file group %q", key)
}

// collect gathers reviewable files in deterministic path order.
func (w *Walker) collect(ctx context.Context) ([]domain.SourceFile, error) {
	var files []domain.SourceFile

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() == 0 || info.Size() > w.maxFileBytes {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if isBinary(data) {
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = path
		}

		files = append(files, domain.SourceFile{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Content: string(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", w.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// isBinary treats any NUL byte in the first KiB as a binary marker.
func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	for _, b := range probe {
		if b == 0 {
			return true
		}
	}
	return false
}

func groupLabel(group []domain.SourceFile, index, total int) string {
	if total == 1 && len(group) > 0 {
		return fmt.Sprintf("repository files (%d)", len(group))
	}
	first := ""
	if len(group) > 0 {
		first = group[0].Path
	}
	return fmt.Sprintf("repository files %d/%d starting at %s", index+1, total, first)
}
