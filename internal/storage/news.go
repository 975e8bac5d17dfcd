package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/econbrief/econbrief/internal/models"
)

// UpsertNewsItems caches headlines keyed by item ID, refreshing every field
// of rows that already exist. All writes share one transaction.
func (s *Store) UpsertNewsItems(ctx context.Context, items []models.NewsItem, fetchedAt time.Time) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning news upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO news_items (id, title, summary, published_at, source, url, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title        = excluded.title,
			summary      = excluded.summary,
			published_at = excluded.published_at,
			source       = excluded.source,
			url          = excluded.url,
			fetched_at   = excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("preparing news upsert: %w", err)
	}
	defer stmt.Close()

	fetched := formatTime(fetchedAt)
	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID, item.Title, item.Summary, formatTime(item.PublishedAt),
			item.Source, item.URL, fetched,
		); err != nil {
			return fmt.Errorf("upserting news item %q: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing news upsert: %w", err)
	}
	return nil
}

// ListNewsItems returns up to limit cached headlines, newest first.
func (s *Store) ListNewsItems(ctx context.Context, limit int) ([]models.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, summary, published_at, source, url
		 FROM news_items
		 ORDER BY published_at DESC, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying news items: %w", err)
	}
	defer rows.Close()

	items := []models.NewsItem{}
	for rows.Next() {
		var (
			item        models.NewsItem
			publishedAt string
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.Summary, &publishedAt, &item.Source, &item.URL); err != nil {
			return nil, fmt.Errorf("scanning news item row: %w", err)
		}
		item.PublishedAt = parseTime(publishedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating news item rows: %w", err)
	}
	return items, nil
}
