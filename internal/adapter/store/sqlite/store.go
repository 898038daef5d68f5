package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bkyoung/review-pipeline/internal/domain"
)

// Store keeps review history in SQLite. It implements the usecase
// HistoryStore port.
type Store struct {
	db       *sql.DB
	now      func() time.Time
	provider string
}

// StoredReview is one persisted review row with its issues rehydrated.
type StoredReview struct {
	ID        int64
	UnitKey   string
	UnitLabel string
	Provider  string
	CreatedAt time.Time
	Review    domain.CanonicalReview
}

// NewStore creates a new SQLite store at the given path.
// Use ":memory:" for an in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, now: time.Now, provider: "unknown"}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// SetClock overrides the timestamp source for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// SetProvider records which provider produced the reviews being saved.
func (s *Store) SetProvider(name string) {
	if name != "" {
		s.provider = name
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates all tables and indexes if they don't exist.
func (s *Store) createSchema() error {
	schema := `
	-- One row per completed review of a unit
	CREATE TABLE IF NOT EXISTS reviews (
		review_id INTEGER PRIMARY KEY AUTOINCREMENT,
		unit_key TEXT NOT NULL,
		unit_label TEXT NOT NULL,
		provider TEXT NOT NULL,
		score INTEGER NOT NULL,
		confidence INTEGER NOT NULL,
		summary TEXT,
		lists TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);

	-- Issues belonging to a review
	CREATE TABLE IF NOT EXISTS issues (
		issue_id INTEGER PRIMARY KEY AUTOINCREMENT,
		review_id INTEGER NOT NULL,
		severity TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		suggestion TEXT,
		citation TEXT,
		auto_fixable INTEGER DEFAULT 0,
		FOREIGN KEY (review_id) REFERENCES reviews(review_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_unit ON reviews(unit_key);
	CREATE INDEX IF NOT EXISTS idx_reviews_created ON reviews(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_issues_review ON issues(review_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// reviewLists bundles the list-valued review fields for one JSON column,
// so schema changes do not ripple into migrations.
type reviewLists struct {
	Suggestions   []string `json:"suggestions,omitempty"`
	Security      []string `json:"security,omitempty"`
	Performance   []string `json:"performance,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	Accessibility []string `json:"accessibility,omitempty"`
	Sources       []string `json:"sources,omitempty"`
}

// SaveReview persists one review with its issues in a transaction.
func (s *Store) SaveReview(ctx context.Context, identity domain.Identity, review domain.CanonicalReview) error {
	lists, err := json.Marshal(reviewLists{
		Suggestions:   review.Suggestions,
		Security:      review.Security,
		Performance:   review.Performance,
		Dependencies:  review.Dependencies,
		Accessibility: review.Accessibility,
		Sources:       review.Sources,
	})
	if err != nil {
		return fmt.Errorf("failed to encode review lists: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO reviews (unit_key, unit_label, provider, score, confidence, summary, lists, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		identity.Key,
		identity.Label,
		s.provider,
		review.Score,
		review.Confidence,
		review.Summary,
		string(lists),
		s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	reviewID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read review id: %w", err)
	}

	for _, issue := range review.Issues {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO issues (review_id, severity, category, description, suggestion, citation, auto_fixable)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			reviewID,
			issue.Severity,
			issue.Category,
			issue.Description,
			issue.Suggestion,
			issue.Citation,
			boolToInt(issue.AutoFixable),
		); err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	return nil
}

// RecentReviews returns up to limit reviews, newest first.
func (s *Store) RecentReviews(ctx context.Context, limit int) ([]StoredReview, error) {
	return s.queryReviews(ctx, `
		SELECT review_id, unit_key, unit_label, provider, score, confidence, summary, lists, created_at
		FROM reviews ORDER BY created_at DESC, review_id DESC LIMIT ?`, limit)
}

// ReviewsForUnit returns all stored reviews of one unit, newest first.
func (s *Store) ReviewsForUnit(ctx context.Context, unitKey string) ([]StoredReview, error) {
	return s.queryReviews(ctx, `
		SELECT review_id, unit_key, unit_label, provider, score, confidence, summary, lists, created_at
		FROM reviews WHERE unit_key = ? ORDER BY created_at DESC, review_id DESC`, unitKey)
}

func (s *Store) queryReviews(ctx context.Context, query string, args ...interface{}) ([]StoredReview, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []StoredReview
	for rows.Next() {
		var (
			stored    StoredReview
			listsJSON string
			createdAt int64
		)
		if err := rows.Scan(&stored.ID, &stored.UnitKey, &stored.UnitLabel, &stored.Provider,
			&stored.Review.Score, &stored.Review.Confidence, &stored.Review.Summary,
			&listsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		var lists reviewLists
		if err := json.Unmarshal([]byte(listsJSON), &lists); err != nil {
			return nil, fmt.Errorf("failed to decode review lists: %w", err)
		}
		stored.Review.Suggestions = lists.Suggestions
		stored.Review.Security = lists.Security
		stored.Review.Performance = lists.Performance
		stored.Review.Dependencies = lists.Dependencies
		stored.Review.Accessibility = lists.Accessibility
		stored.Review.Sources = lists.Sources
		stored.CreatedAt = time.Unix(createdAt, 0).UTC()

		reviews = append(reviews, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reviews {
		issues, err := s.reviewIssues(ctx, reviews[i].ID)
		if err != nil {
			return nil, err
		}
		reviews[i].Review.Issues = issues
	}
	return reviews, nil
}

func (s *Store) reviewIssues(ctx context.Context, reviewID int64) ([]domain.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, category, description, suggestion, citation, auto_fixable
		FROM issues WHERE review_id = ? ORDER BY issue_id`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	issues := []domain.Issue{}
	for rows.Next() {
		var (
			issue       domain.Issue
			autoFixable int
		)
		if err := rows.Scan(&issue.Severity, &issue.Category, &issue.Description,
			&issue.Suggestion, &issue.Citation, &autoFixable); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.AutoFixable = autoFixable != 0
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
