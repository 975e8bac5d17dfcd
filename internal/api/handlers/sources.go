package handlers

import (
	"log/slog"
	"net/http"

	"github.com/econbrief/econbrief/internal/storage"
)

// ListSources handles GET /sources. Sources are managed through the
// catalogue file, so there is no write endpoint.
func ListSources(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := store.ListSources(r.Context())
		if err != nil {
			slog.Error("failed to list sources", "error", err)
			writeError(w, r, http.StatusInternalServerError, "Failed to list sources")
			return
		}

		writeJSON(w, http.StatusOK, sources)
	}
}
