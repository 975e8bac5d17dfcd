package storage

import (
	"context"
	"fmt"

	"github.com/econbrief/econbrief/internal/models"
)

// DefaultLogLimit caps log listings.
const DefaultLogLimit = 50

// CreateMailLog records one mail send attempt and assigns its ID.
func (s *Store) CreateMailLog(ctx context.Context, l *models.MailLog) error {
	id := s.newID()
	now := formatTime(s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mail_logs (id, kind, to_email, subject, status, error_message, sent_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, l.Kind, l.ToEmail, l.Subject, string(l.Status),
		nullableString(l.ErrorMessage), formatTimePtr(l.SentAt), now,
	)
	if err != nil {
		return fmt.Errorf("inserting mail log: %w", err)
	}

	l.ID = id
	l.CreatedAt = parseTime(now)
	return nil
}

// ListMailLogs returns up to limit mail logs, newest first.
func (s *Store) ListMailLogs(ctx context.Context, limit int) ([]models.MailLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, to_email, subject, status, error_message, sent_at, created_at
		 FROM mail_logs
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying mail logs: %w", err)
	}
	defer rows.Close()

	logs := []models.MailLog{}
	for rows.Next() {
		var (
			l         models.MailLog
			status    string
			errMsg    *string
			sentAt    *string
			createdAt string
		)
		if err := rows.Scan(&l.ID, &l.Kind, &l.ToEmail, &l.Subject, &status, &errMsg, &sentAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning mail log row: %w", err)
		}
		l.Status = models.MailStatus(status)
		l.ErrorMessage = derefString(errMsg)
		l.SentAt = parseTimePtr(sentAt)
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mail log rows: %w", err)
	}
	return logs, nil
}

// CreateServiceErrorLog appends one audit row for an external service
// failure and assigns its ID.
func (s *Store) CreateServiceErrorLog(ctx context.Context, l *models.ServiceErrorLog) error {
	id := s.newID()
	now := formatTime(s.now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO service_error_logs
			(id, service, context, error_message, request_id, article_id, script_id, source_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(l.Service), string(l.Context), l.ErrorMessage, l.RequestID,
		nullableString(l.ArticleID), nullableString(l.ScriptID), nullableString(l.SourceID), now,
	)
	if err != nil {
		return fmt.Errorf("inserting service error log: %w", err)
	}

	l.ID = id
	l.CreatedAt = parseTime(now)
	return nil
}

// ServiceErrorFilter narrows ListServiceErrorLogs. Zero values mean "no
// filter".
type ServiceErrorFilter struct {
	RequestID string
	Service   models.Service
	Limit     int
}

// ListServiceErrorLogs returns audit rows newest first.
func (s *Store) ListServiceErrorLogs(ctx context.Context, f ServiceErrorFilter) ([]models.ServiceErrorLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	q := stmtBuilder.
		Select("id", "service", "context", "error_message", "request_id",
			"article_id", "script_id", "source_id", "created_at").
		From("service_error_logs").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	if f.RequestID != "" {
		q = q.Where("request_id = ?", f.RequestID)
	}
	if f.Service != "" {
		q = q.Where("service = ?", string(f.Service))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building service error log query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying service error logs: %w", err)
	}
	defer rows.Close()

	logs := []models.ServiceErrorLog{}
	for rows.Next() {
		var (
			l                             models.ServiceErrorLog
			service, errCtx               string
			articleID, scriptID, sourceID *string
			createdAt                     string
		)
		if err := rows.Scan(&l.ID, &service, &errCtx, &l.ErrorMessage, &l.RequestID,
			&articleID, &scriptID, &sourceID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning service error log row: %w", err)
		}
		l.Service = models.Service(service)
		l.Context = models.ErrorContext(errCtx)
		l.ArticleID = derefString(articleID)
		l.ScriptID = derefString(scriptID)
		l.SourceID = derefString(sourceID)
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating service error log rows: %w", err)
	}
	return logs, nil
}
