package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/econbrief/econbrief/internal/models"
)

// CreateAnalysis stores a validated analysis payload for an article and
// assigns its ID. Analyses are never updated; regenerating one adds a row.
func (s *Store) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	if !json.Valid(a.ContentJSON) {
		return fmt.Errorf("analysis content for article %q is not valid JSON", a.ArticleID)
	}

	id := s.newID()
	now := formatTime(s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, article_id, model, content_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, a.ArticleID, a.Model, string(a.ContentJSON), now,
	)
	if err != nil {
		return fmt.Errorf("inserting analysis for article %q: %w", a.ArticleID, err)
	}

	a.ID = id
	a.CreatedAt = parseTime(now)
	return nil
}

// LatestAnalysis returns the newest analysis of the given article.
// Returns nil, ErrNotFound if the article has none.
func (s *Store) LatestAnalysis(ctx context.Context, articleID string) (*models.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, article_id, model, content_json, created_at
		 FROM analyses
		 WHERE article_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, articleID)

	var (
		a         models.Analysis
		content   string
		createdAt string
	)
	if err := row.Scan(&a.ID, &a.ArticleID, &a.Model, &content, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting latest analysis for article %q: %w", articleID, err)
	}
	a.ContentJSON = json.RawMessage(content)
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// CountAnalyses returns the number of analyses stored for an article.
func (s *Store) CountAnalyses(ctx context.Context, articleID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses WHERE article_id = ?`, articleID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting analyses for article %q: %w", articleID, err)
	}
	return n, nil
}

// RecentAnalyses returns the most recently created analyses across all
// articles, newest first, joined with their article title and source name.
func (s *Store) RecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisWithArticle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT an.id, an.article_id, an.model, an.content_json, an.created_at,
				a.title, COALESCE(s.name, '')
		 FROM analyses an
		 JOIN articles a ON a.id = an.article_id
		 LEFT JOIN sources s ON s.id = a.source_id
		 ORDER BY an.created_at DESC, an.id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent analyses: %w", err)
	}
	defer rows.Close()

	analyses := []models.AnalysisWithArticle{}
	for rows.Next() {
		var (
			a         models.AnalysisWithArticle
			content   string
			createdAt string
		)
		if err := rows.Scan(
			&a.ID, &a.ArticleID, &a.Model, &content, &createdAt,
			&a.ArticleTitle, &a.SourceName,
		); err != nil {
			return nil, fmt.Errorf("scanning analysis row: %w", err)
		}
		a.ContentJSON = json.RawMessage(content)
		a.CreatedAt = parseTime(createdAt)
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analysis rows: %w", err)
	}
	return analyses, nil
}
