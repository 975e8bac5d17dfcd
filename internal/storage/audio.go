package storage

import (
	"context"
	"fmt"

	"github.com/econbrief/econbrief/internal/models"
)

// CreateAudioFile records an uploaded audio object for a script and assigns
// its ID.
func (s *Store) CreateAudioFile(ctx context.Context, af *models.AudioFile) error {
	id := s.newID()
	now := formatTime(s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audio_files (id, script_id, storage_key, public_url, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, af.ScriptID, af.StorageKey, af.PublicURL, now,
	)
	if err != nil {
		return fmt.Errorf("inserting audio file for script %q: %w", af.ScriptID, err)
	}

	af.ID = id
	af.CreatedAt = parseTime(now)
	return nil
}

// ListAudioFiles returns the audio files of a script, newest first.
func (s *Store) ListAudioFiles(ctx context.Context, scriptID string) ([]models.AudioFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, script_id, storage_key, public_url, created_at
		 FROM audio_files
		 WHERE script_id = ?
		 ORDER BY created_at DESC, id DESC`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("querying audio files for script %q: %w", scriptID, err)
	}
	defer rows.Close()

	files := []models.AudioFile{}
	for rows.Next() {
		var (
			af        models.AudioFile
			createdAt string
		)
		if err := rows.Scan(&af.ID, &af.ScriptID, &af.StorageKey, &af.PublicURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audio file row: %w", err)
		}
		af.CreatedAt = parseTime(createdAt)
		files = append(files, af)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audio file rows: %w", err)
	}
	return files, nil
}
