package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/econbrief/econbrief/internal/config"
	"github.com/econbrief/econbrief/internal/news"
)

// NewsSource serves the AI headline feed.
type NewsSource interface {
	Latest(ctx context.Context) (*news.Response, error)
}

// GetNews handles GET /api/news. When neither NewsAPI nor the cache can
// serve headlines, a missing API key is a 500 and an upstream failure a 502.
func GetNews(src NewsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := src.Latest(r.Context())
		if err != nil {
			if config.IsMissing(err) {
				writeError(w, r, http.StatusInternalServerError, err.Error())
				return
			}
			slog.Error("failed to fetch news", "error", err)
			writeError(w, r, http.StatusBadGateway, "Failed to fetch news from NewsAPI")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// Health handles GET /health.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
