package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/bkyoung/review-pipeline/internal/adapter/store/sqlite"
	"github.com/bkyoung/review-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReview() domain.CanonicalReview {
	return domain.CanonicalReview{
		Score:      7,
		Confidence: 6,
		Summary:    "Solid change with minor nits.",
		Issues: []domain.Issue{
			{Severity: "medium", Category: "bug", Description: "Off by one in loop", Suggestion: "Use <= bound"},
			{Severity: "low", Category: "style", Description: "Inconsistent naming", AutoFixable: true},
		},
		Suggestions: []string{"Add a regression test"},
		Security:    []string{},
	}
}

func TestStore_SaveAndLoadReview(t *testing.T) {
	store := newTestStore(t)
	store.SetProvider("anthropic")
	store.SetClock(func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) })

	identity := domain.Identity{Key: "abc123", Label: "abc123 fix parser"}
	require.NoError(t, store.SaveReview(context.Background(), identity, sampleReview()))

	reviews, err := store.RecentReviews(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	stored := reviews[0]
	assert.Equal(t, "abc123", stored.UnitKey)
	assert.Equal(t, "abc123 fix parser", stored.UnitLabel)
	assert.Equal(t, "anthropic", stored.Provider)
	assert.Equal(t, 7, stored.Review.Score)
	assert.Equal(t, "Solid change with minor nits.", stored.Review.Summary)
	assert.Equal(t, []string{"Add a regression test"}, stored.Review.Suggestions)
	assert.Equal(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), stored.CreatedAt)

	require.Len(t, stored.Review.Issues, 2)
	assert.Equal(t, "Off by one in loop", stored.Review.Issues[0].Description)
	assert.True(t, stored.Review.Issues[1].AutoFixable)
}

func TestStore_RecentReviewsOrderAndLimit(t *testing.T) {
	store := newTestStore(t)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i, key := range []string{"first", "second", "third"} {
		ts := now.Add(time.Duration(i) * time.Minute)
		store.SetClock(func() time.Time { return ts })
		require.NoError(t, store.SaveReview(context.Background(),
			domain.Identity{Key: key, Label: key}, sampleReview()))
	}

	reviews, err := store.RecentReviews(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "third", reviews[0].UnitKey)
	assert.Equal(t, "second", reviews[1].UnitKey)
}

func TestStore_ReviewsForUnit(t *testing.T) {
	store := newTestStore(t)

	ctx := context.Background()
	require.NoError(t, store.SaveReview(ctx, domain.Identity{Key: "keep", Label: "keep"}, sampleReview()))
	require.NoError(t, store.SaveReview(ctx, domain.Identity{Key: "other", Label: "other"}, sampleReview()))
	require.NoError(t, store.SaveReview(ctx, domain.Identity{Key: "keep", Label: "keep"}, sampleReview()))

	reviews, err := store.ReviewsForUnit(ctx, "keep")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	for _, stored := range reviews {
		assert.Equal(t, "keep", stored.UnitKey)
	}

	none, err := store.ReviewsForUnit(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_SaveReviewWithNoIssues(t *testing.T) {
	store := newTestStore(t)

	review := sampleReview()
	review.Issues = nil

	require.NoError(t, store.SaveReview(context.Background(),
		domain.Identity{Key: "clean", Label: "clean"}, review))

	reviews, err := store.RecentReviews(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Empty(t, reviews[0].Review.Issues)
}
