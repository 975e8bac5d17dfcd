package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/econbrief/econbrief/internal/feeds"
)

// FeedIngester runs one ingestion pass over the enabled sources.
type FeedIngester interface {
	Run(ctx context.Context, requestID string) (*feeds.Result, bool, error)
}

// IngestRSS handles POST /ingest/rss. Per-source failures are reported in
// the body; only a failure to start the run is a 500. A request that joined
// a run already in progress also gets runRequestId, the id its audit rows
// are logged under.
func IngestRSS(ingester FeedIngester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r)

		res, shared, err := ingester.Run(r.Context(), reqID)
		if err != nil {
			slog.Error("rss ingestion failed", "request_id", reqID, "error", err)
			writeError(w, r, http.StatusInternalServerError, "Failed to ingest RSS feeds")
			return
		}

		message := "RSS ingestion finished"
		if len(res.Sources) == 0 {
			message = "No enabled RSS sources"
		}

		// Audit rows of a shared run are filed under the id of the request
		// that started it.
		var runRequestID string
		if shared {
			runRequestID = res.RunRequestID
		}

		writeJSON(w, http.StatusOK, struct {
			Message   string `json:"message"`
			RequestID string `json:"requestId"`
			*feeds.Result
			Shared       bool   `json:"shared"`
			RunRequestID string `json:"runRequestId,omitempty"`
		}{message, reqID, res, shared, runRequestID})
	}
}
