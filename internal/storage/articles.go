package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/econbrief/econbrief/internal/models"
)

// DefaultArticleLimit caps article listings when the caller asks for none.
const DefaultArticleLimit = 50

const articleColumns = `a.id, a.source_id, COALESCE(s.name, ''), a.url, a.url_normalized,
	a.title, a.published_at, a.fetched_at, a.excerpt, a.tags, a.created_at`

// ArticleFilter narrows ListArticles. Zero values mean "no filter".
type ArticleFilter struct {
	// Query is matched case-insensitively against the title.
	Query string
	// Tag must be one of the article's tags exactly.
	Tag   string
	Limit int
}

// CreateArticle inserts a new article and assigns its ID. It returns
// created=false without error when an article with the same normalized URL
// already exists; the existing row is never overwritten.
func (s *Store) CreateArticle(ctx context.Context, a *models.Article) (bool, error) {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return false, fmt.Errorf("encoding article tags: %w", err)
	}

	id := s.newID()
	now := s.now()
	if a.FetchedAt.IsZero() {
		a.FetchedAt = now
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (id, source_id, url, url_normalized, title, published_at, fetched_at, excerpt, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url_normalized) DO NOTHING`,
		id, a.SourceID, a.URL, a.URLNormalized, a.Title,
		formatTimePtr(a.PublishedAt), formatTime(a.FetchedAt),
		nullableString(a.Excerpt), string(tagsJSON), formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("inserting article: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected for article: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	a.ID = id
	a.Tags = tags
	a.CreatedAt = parseTime(formatTime(now))
	return true, nil
}

// ArticleExists reports whether an article with the given normalized URL is
// already stored.
func (s *Store) ArticleExists(ctx context.Context, urlNormalized string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM articles WHERE url_normalized = ?)`, urlNormalized,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking article existence: %w", err)
	}
	return exists == 1, nil
}

// GetArticle returns the article with the given ID, including its source
// name. Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+`
		 FROM articles a
		 LEFT JOIN sources s ON s.id = a.source_id
		 WHERE a.id = ?`, id)

	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting article %q: %w", id, err)
	}
	return article, nil
}

// ListArticles returns articles newest-first by publish date (undated
// articles last), each with the ID of its latest analysis.
func (s *Store) ListArticles(ctx context.Context, f ArticleFilter) ([]models.ArticleSummary, error) {
	limit := f.Limit
	if limit <= 0 || limit > DefaultArticleLimit {
		limit = DefaultArticleLimit
	}

	q := stmtBuilder.
		Select(articleColumns,
			`(SELECT an.id FROM analyses an WHERE an.article_id = a.id
			  ORDER BY an.created_at DESC, an.id DESC LIMIT 1)`).
		From("articles a").
		LeftJoin("sources s ON s.id = a.source_id").
		OrderBy("a.published_at IS NULL", "a.published_at DESC", "a.created_at DESC", "a.id DESC").
		Limit(uint64(limit))

	if query := strings.TrimSpace(f.Query); query != "" {
		q = q.Where(sq.Like{"LOWER(a.title)": "%" + strings.ToLower(query) + "%"})
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		q = q.Where(sq.Expr("EXISTS (SELECT 1 FROM json_each(a.tags) t WHERE t.value = ?)", tag))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building article query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	articles := []models.ArticleSummary{}
	for rows.Next() {
		var latest *string
		a, err := scanArticleWith(rows, &latest)
		if err != nil {
			return nil, fmt.Errorf("scanning article row: %w", err)
		}
		articles = append(articles, models.ArticleSummary{
			Article:          *a,
			LatestAnalysisID: derefString(latest),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating article rows: %w", err)
	}
	return articles, nil
}

// ListTags returns up to limit distinct article tags in alphabetical order.
func (s *Store) ListTags(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT t.value
		 FROM articles a, json_each(a.tags) t
		 WHERE t.type = 'text' AND t.value <> ''
		 ORDER BY t.value
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag rows: %w", err)
	}
	return tags, nil
}

// GetArticleDetail returns an article with its latest analysis and its
// scripts newest-first, each carrying its latest audio file.
func (s *Store) GetArticleDetail(ctx context.Context, id string) (*models.ArticleDetail, error) {
	article, err := s.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.ArticleDetail{Article: *article}

	latest, err := s.LatestAnalysis(ctx, id)
	switch {
	case err == nil:
		detail.LatestAnalysis = latest
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	scripts, err := s.ListScriptsForArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Scripts = scripts
	return detail, nil
}

// scanArticle scans a single article row selected with articleColumns.
func scanArticle(row scanner) (*models.Article, error) {
	return scanArticleWith(row)
}

// scanArticleWith scans articleColumns followed by any extra destinations.
func scanArticleWith(row scanner, extra ...any) (*models.Article, error) {
	var (
		a           models.Article
		publishedAt *string
		fetchedAt   string
		excerpt     *string
		tagsJSON    string
		createdAt   string
	)

	dest := []any{
		&a.ID, &a.SourceID, &a.SourceName, &a.URL, &a.URLNormalized,
		&a.Title, &publishedAt, &fetchedAt, &excerpt, &tagsJSON, &createdAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	a.PublishedAt = parseTimePtr(publishedAt)
	a.FetchedAt = parseTime(fetchedAt)
	a.Excerpt = derefString(excerpt)
	a.CreatedAt = parseTime(createdAt)
	a.Tags = []string{}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags for article %q: %w", a.ID, err)
		}
	}
	return &a, nil
}
