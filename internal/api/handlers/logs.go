package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/econbrief/econbrief/internal/models"
	"github.com/econbrief/econbrief/internal/storage"
)

// LogsResponse is the body of GET /logs.
type LogsResponse struct {
	ServiceErrors []models.ServiceErrorLog `json:"serviceErrors"`
	MailLogs      []models.MailLog         `json:"mailLogs"`
}

// ListLogs handles GET /logs?requestId={id}&service={service}. It returns
// the newest service error and mail log rows.
func ListLogs(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		errs, err := store.ListServiceErrorLogs(ctx, storage.ServiceErrorFilter{
			RequestID: strings.TrimSpace(q.Get("requestId")),
			Service:   models.Service(strings.ToUpper(strings.TrimSpace(q.Get("service")))),
			Limit:     storage.DefaultLogLimit,
		})
		if err != nil {
			slog.Error("failed to list service error logs", "error", err)
			writeError(w, r, http.StatusInternalServerError, "Failed to list logs")
			return
		}

		mails, err := store.ListMailLogs(ctx, storage.DefaultLogLimit)
		if err != nil {
			slog.Error("failed to list mail logs", "error", err)
			writeError(w, r, http.StatusInternalServerError, "Failed to list logs")
			return
		}

		writeJSON(w, http.StatusOK, LogsResponse{ServiceErrors: errs, MailLogs: mails})
	}
}
