package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/econbrief/econbrief/internal/models"
)

// defaultSources is the catalogue seeded into an empty database when no
// sources file is provided.
var defaultSources = []models.Source{
	{ID: "reuters-business", Name: "Reuters Business", RSSURL: "https://feeds.reuters.com/reuters/businessNews", Enabled: true},
	{ID: "nhk-business", Name: "NHK 経済", RSSURL: "https://www3.nhk.or.jp/rss/news/cat5.xml", Enabled: true},
	{ID: "ft-markets", Name: "Financial Times Markets", RSSURL: "https://www.ft.com/markets?format=rss", Enabled: true},
	{ID: "wsj-markets", Name: "WSJ Markets", RSSURL: "https://feeds.a.dj.com/rss/RSSMarketsMain.xml", Enabled: true},
	{ID: "boj-news", Name: "Bank of Japan", RSSURL: "https://www.boj.or.jp/rss/whatsnew.xml", Enabled: false},
}

// SourceFile is the on-disk shape of the sources catalogue.
type SourceFile struct {
	Sources []SourceEntry `yaml:"sources"`
}

// SourceEntry is a single catalogue entry. Enabled defaults to true when
// omitted.
type SourceEntry struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	RSSURL  string `yaml:"rss_url"`
	Enabled *bool  `yaml:"enabled"`
}

// LoadSourceFile reads a YAML sources catalogue. A missing file yields
// (nil, nil) so callers can fall back to SeedDefaults.
func LoadSourceFile(path string) ([]models.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading sources file %q: %w", path, err)
	}

	var file SourceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing sources file %q: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Sources))
	sources := make([]models.Source, 0, len(file.Sources))
	for i, e := range file.Sources {
		if e.ID == "" || e.RSSURL == "" {
			return nil, fmt.Errorf("sources file %q: entry %d needs id and rss_url: %w", path, i, ErrInvalidCatalogue)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("sources file %q: duplicate id %q: %w", path, e.ID, ErrInvalidCatalogue)
		}
		seen[e.ID] = true

		name := e.Name
		if name == "" {
			name = e.ID
		}
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		sources = append(sources, models.Source{
			ID:      e.ID,
			Name:    name,
			RSSURL:  e.RSSURL,
			Enabled: enabled,
		})
	}
	return sources, nil
}

// ListSources returns all sources regardless of enabled status, ordered by
// name.
func (s *Store) ListSources(ctx context.Context) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rss_url, enabled, created_at
		 FROM sources ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying all sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ListEnabledSources returns the sources the ingestion loop should fetch,
// ordered by name.
func (s *Store) ListEnabledSources(ctx context.Context) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rss_url, enabled, created_at
		 FROM sources WHERE enabled = 1 ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying enabled sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// GetSource returns the source with the given ID, or ErrNotFound.
func (s *Store) GetSource(ctx context.Context, id string) (*models.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rss_url, enabled, created_at
		 FROM sources WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying source %q: %w", id, err)
	}
	defer rows.Close()

	sources, err := scanSources(rows)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, ErrNotFound
	}
	return &sources[0], nil
}

// SyncSources upserts the given catalogue: new IDs are inserted and
// existing ones get their name, URL and enabled flag updated. Sources not
// in the catalogue are left untouched so their articles keep a parent.
func (s *Store) SyncSources(ctx context.Context, sources []models.Source) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning source sync: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sources (id, name, rss_url, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name    = excluded.name,
			rss_url = excluded.rss_url,
			enabled = excluded.enabled`)
	if err != nil {
		return fmt.Errorf("preparing source sync: %w", err)
	}
	defer stmt.Close()

	now := formatTime(s.now())
	for _, src := range sources {
		if _, err := stmt.ExecContext(ctx, src.ID, src.Name, src.RSSURL, boolToInt(src.Enabled), now); err != nil {
			return fmt.Errorf("syncing source %q: %w", src.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing source sync: %w", err)
	}
	return nil
}

// SeedDefaults inserts the default catalogue if the sources table is empty.
// Calling it on a non-empty table is a no-op.
func (s *Store) SeedDefaults(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count); err != nil {
		return fmt.Errorf("counting sources: %w", err)
	}
	if count > 0 {
		return nil
	}
	return s.SyncSources(ctx, defaultSources)
}

// DefaultSourceCount returns the number of sources SeedDefaults inserts.
func DefaultSourceCount() int {
	return len(defaultSources)
}

// scanSources reads all rows from a sources query into a slice.
func scanSources(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
},
) ([]models.Source, error) {
	var sources []models.Source
	for rows.Next() {
		var (
			src       models.Source
			enabled   int
			createdAt string
		)
		if err := rows.Scan(&src.ID, &src.Name, &src.RSSURL, &enabled, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		src.Enabled = enabled == 1
		src.CreatedAt = parseTime(createdAt)
		sources = append(sources, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source rows: %w", err)
	}

	// Return empty slice instead of nil for consistent JSON serialization.
	if sources == nil {
		sources = []models.Source{}
	}
	return sources, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
