// Package audit records failures of external services against the request
// that triggered them.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/econbrief/econbrief/internal/models"
)

// writeTimeout bounds the audit write so it still runs when the request
// context has been cancelled.
const writeTimeout = 5 * time.Second

// Store is the persistence the logger needs.
type Store interface {
	CreateServiceErrorLog(ctx context.Context, l *models.ServiceErrorLog) error
}

// Entry describes one failure. The optional IDs may be empty.
type Entry struct {
	Service   models.Service
	Context   models.ErrorContext
	Err       error
	RequestID string
	ArticleID string
	ScriptID  string
	SourceID  string
}

// Logger writes ServiceErrorLog rows on a best-effort basis.
type Logger struct {
	store Store
}

// NewLogger creates a Logger backed by store.
func NewLogger(store Store) *Logger {
	return &Logger{store: store}
}

// Log records e. It never returns an error: a failed write is reported on
// the process log and otherwise ignored, so the caller's original failure
// is what propagates.
func (l *Logger) Log(ctx context.Context, e Entry) {
	row := &models.ServiceErrorLog{
		Service:      e.Service,
		Context:      e.Context,
		ErrorMessage: Message(e.Err),
		RequestID:    e.RequestID,
		ArticleID:    e.ArticleID,
		ScriptID:     e.ScriptID,
		SourceID:     e.SourceID,
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := l.store.CreateServiceErrorLog(writeCtx, row); err != nil {
		slog.Error("failed to write service error log",
			"error", err,
			"service", e.Service,
			"context", e.Context,
			"request_id", e.RequestID,
			"original_error", row.ErrorMessage,
		)
		return
	}

	slog.Warn("external service failure recorded",
		"service", e.Service,
		"context", e.Context,
		"request_id", e.RequestID,
		"log_id", row.ID,
		"error", row.ErrorMessage,
	)
}

// Message extracts a human-readable message from err.
func Message(err error) string {
	if err == nil {
		return "unknown error"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}
