package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bkyoung/review-pipeline/internal/adapter/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestWalker_Units(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":        "package main\n",
		"internal/a.go":  "package internal\n",
		"README.md":      "# readme\n",
		".git/config":    "[core]\n",
		"vendor/dep.go":  "package dep\n",
		"node_modules/x": "console.log(1)\n",
	})

	walker := repository.NewWalker(root, 100_000)
	units, err := walker.Units(context.Background())

	require.NoError(t, err)
	require.Len(t, units, 1, "small tree fits one group")

	content := units[0].Content
	assert.Contains(t, content, "--- FILE: main.go")
	assert.Contains(t, content, "--- FILE: internal/a.go")
	assert.Contains(t, content, "--- FILE: README.md")
	assert.NotContains(t, content, ".git/config", "VCS internals are skipped")
	assert.NotContains(t, content, "vendor/dep.go", "vendored code is skipped")
	assert.NotContains(t, content, "node_modules", "dependency trees are skipped")
	assert.Equal(t, "files:0", units[0].Identity.Key)
}

func TestWalker_SkipsBinaryAndEmptyFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"code.go":  "package code\n",
		"blob.bin": "head\x00tail",
		"empty":    "",
	})

	walker := repository.NewWalker(root, 100_000)
	units, err := walker.Units(context.Background())

	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Contains(t, units[0].Content, "code.go")
	assert.NotContains(t, units[0].Content, "blob.bin")
	assert.NotContains(t, units[0].Content, "--- FILE: empty")
}

func TestWalker_SplitsLargeTreesIntoGroups(t *testing.T) {
	big := strings.Repeat("x := 1\n", 500)
	root := writeTree(t, map[string]string{
		"a.go": big,
		"b.go": big,
		"c.go": big,
	})

	walker := repository.NewWalker(root, len(big)+100)
	units, err := walker.Units(context.Background())

	require.NoError(t, err)
	require.Len(t, units, 3, "each big file lands in its own group")
	assert.Equal(t, "files:0", units[0].Identity.Key)
	assert.Equal(t, "files:2", units[2].Identity.Key)
	assert.Contains(t, units[0].Content, "a.go", "walk order is path-sorted")
}

func TestWalker_UnitLookup(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n"})
	walker := repository.NewWalker(root, 100_000)

	unit, err := walker.Unit(context.Background(), "files:0")
	require.NoError(t, err)
	assert.Contains(t, unit.Content, "a.go")

	_, err = walker.Unit(context.Background(), "files:9")
	assert.Error(t, err)
}

func TestWalker_EmptyTree(t *testing.T) {
	walker := repository.NewWalker(t.TempDir(), 100_000)
	_, err := walker.Units(context.Background())
	assert.Error(t, err)
}

func TestWalker_DeterministicOrder(t *testing.T) {
	root := writeTree(t, map[string]string{
		"z.go": "package z\n",
		"a.go": "package a\n",
		"m.go": "package m\n",
	})
	walker := repository.NewWalker(root, 100_000)

	first, err := walker.Units(context.Background())
	require.NoError(t, err)
	second, err := walker.Units(context.Background())
	require.NoError(t, err)

	require.Equal(t, first, second)
	aIdx := strings.Index(first[0].Content, "a.go")
	mIdx := strings.Index(first[0].Content, "m.go")
	zIdx := strings.Index(first[0].Content, "z.go")
	assert.True(t, aIdx < mIdx && mIdx < zIdx)
}
