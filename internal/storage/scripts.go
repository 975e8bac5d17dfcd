package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/econbrief/econbrief/internal/models"
)

// CreateScript stores narration text and assigns its ID. Digest scripts
// have an empty ArticleID, stored as NULL.
func (s *Store) CreateScript(ctx context.Context, sc *models.Script) error {
	if sc.Kind == models.ScriptKindArticle && sc.ArticleID == "" {
		return errors.New("article script requires an article id")
	}

	id := s.newID()
	now := formatTime(s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scripts (id, article_id, kind, text, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, nullableString(sc.ArticleID), string(sc.Kind), sc.Text, now,
	)
	if err != nil {
		return fmt.Errorf("inserting %s script: %w", sc.Kind, err)
	}

	sc.ID = id
	sc.CreatedAt = parseTime(now)
	return nil
}

// GetScript returns the script with the given ID.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetScript(ctx context.Context, id string) (*models.Script, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, article_id, kind, text, created_at FROM scripts WHERE id = ?`, id)

	sc, err := scanScript(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting script %q: %w", id, err)
	}
	return sc, nil
}

// CountScripts returns the number of scripts stored for an article.
func (s *Store) CountScripts(ctx context.Context, articleID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scripts WHERE article_id = ?`, articleID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting scripts for article %q: %w", articleID, err)
	}
	return n, nil
}

// ListScriptsForArticle returns an article's scripts newest-first, each
// with its most recent audio file if one exists.
func (s *Store) ListScriptsForArticle(ctx context.Context, articleID string) ([]models.ScriptWithAudio, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sc.id, sc.article_id, sc.kind, sc.text, sc.created_at,
				af.id, af.storage_key, af.public_url, af.created_at
		 FROM scripts sc
		 LEFT JOIN audio_files af ON af.id = (
			SELECT id FROM audio_files
			WHERE script_id = sc.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1)
		 WHERE sc.article_id = ?
		 ORDER BY sc.created_at DESC, sc.id DESC`, articleID)
	if err != nil {
		return nil, fmt.Errorf("querying scripts for article %q: %w", articleID, err)
	}
	defer rows.Close()

	scripts := []models.ScriptWithAudio{}
	for rows.Next() {
		var (
			sw             models.ScriptWithAudio
			scArticleID    *string
			kind           string
			scCreatedAt    string
			audioID        *string
			audioKey       *string
			audioURL       *string
			audioCreatedAt *string
		)
		if err := rows.Scan(
			&sw.ID, &scArticleID, &kind, &sw.Text, &scCreatedAt,
			&audioID, &audioKey, &audioURL, &audioCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning script row: %w", err)
		}
		sw.ArticleID = derefString(scArticleID)
		sw.Kind = models.ScriptKind(kind)
		sw.CreatedAt = parseTime(scCreatedAt)
		if audioID != nil {
			sw.LatestAudio = &models.AudioFile{
				ID:         *audioID,
				ScriptID:   sw.ID,
				StorageKey: derefString(audioKey),
				PublicURL:  derefString(audioURL),
				CreatedAt:  parseTime(derefString(audioCreatedAt)),
			}
		}
		scripts = append(scripts, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating script rows: %w", err)
	}
	return scripts, nil
}

func scanScript(row scanner) (*models.Script, error) {
	var (
		sc        models.Script
		articleID *string
		kind      string
		createdAt string
	)
	if err := row.Scan(&sc.ID, &articleID, &kind, &sc.Text, &createdAt); err != nil {
		return nil, err
	}
	sc.ArticleID = derefString(articleID)
	sc.Kind = models.ScriptKind(kind)
	sc.CreatedAt = parseTime(createdAt)
	return &sc, nil
}
