package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/econbrief/econbrief/internal/feeds"
)

type fakeIngester struct {
	res    *feeds.Result
	shared bool
	err    error
}

func (f fakeIngester) Run(context.Context, string) (*feeds.Result, bool, error) {
	return f.res, f.shared, f.err
}

func TestIngestRSS(t *testing.T) {
	tests := []struct {
		name        string
		ingester    fakeIngester
		wantStatus  int
		wantMessage string
		wantCreated float64
	}{
		{
			name: "reports counts",
			ingester: fakeIngester{res: &feeds.Result{
				CreatedCount: 3,
				SkippedCount: 1,
				Sources: []feeds.SourceResult{
					{SourceID: "a", RSSURL: "https://a.example.com/rss", CreatedCount: 3, SkippedCount: 1},
					{SourceID: "b", RSSURL: "https://b.example.com/rss", Error: "status 503"},
				},
			}},
			wantStatus:  http.StatusOK,
			wantMessage: "RSS ingestion finished",
			wantCreated: 3,
		},
		{
			name:        "no sources",
			ingester:    fakeIngester{res: &feeds.Result{Sources: []feeds.SourceResult{}}},
			wantStatus:  http.StatusOK,
			wantMessage: "No enabled RSS sources",
		},
		{
			name:        "store failure",
			ingester:    fakeIngester{err: errors.New("database is locked")},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Failed to ingest RSS feeds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/ingest/rss", nil)
			r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, "req-9"))
			w := httptest.NewRecorder()

			IngestRSS(tt.ingester).ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
			got := decodeBody(t, w)
			if got["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %q", got["message"], tt.wantMessage)
			}
			if got["requestId"] != "req-9" {
				t.Errorf("requestId = %v, want req-9", got["requestId"])
			}
			if tt.wantStatus == http.StatusOK && got["createdCount"] != tt.wantCreated {
				t.Errorf("createdCount = %v, want %v", got["createdCount"], tt.wantCreated)
			}
		})
	}
}

func TestIngestRSS_SourceErrorsInBody(t *testing.T) {
	ing := fakeIngester{
		shared: true,
		res: &feeds.Result{Sources: []feeds.SourceResult{
			{SourceID: "ok", RSSURL: "https://ok.example.com/rss", CreatedCount: 1},
			{SourceID: "down", RSSURL: "https://down.example.com/rss", Error: "fetching feed: timeout"},
		}},
	}

	w := httptest.NewRecorder()
	IngestRSS(ing).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ingest/rss", nil))

	got := decodeBody(t, w)
	if got["shared"] != true {
		t.Errorf("shared = %v, want true", got["shared"])
	}
	sources, _ := got["sources"].([]any)
	if len(sources) != 2 {
		t.Fatalf("sources = %v", got["sources"])
	}
	ok, _ := sources[0].(map[string]any)
	if _, present := ok["error"]; present {
		t.Errorf("successful source should omit error, got %v", ok["error"])
	}
	down, _ := sources[1].(map[string]any)
	if down["error"] != "fetching feed: timeout" {
		t.Errorf("failed source error = %v", down["error"])
	}
}

func TestIngestRSS_RunRequestID(t *testing.T) {
	res := &feeds.Result{
		RunRequestID: "req-leader",
		Sources:      []feeds.SourceResult{{SourceID: "down", Error: "feed down"}},
	}
	tests := []struct {
		name    string
		shared  bool
		want    any
		present bool
	}{
		{name: "shared run names the leader", shared: true, want: "req-leader", present: true},
		{name: "own run omits it", shared: false, present: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/ingest/rss", nil)
			r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, "req-follower"))
			w := httptest.NewRecorder()

			IngestRSS(fakeIngester{res: res, shared: tt.shared}).ServeHTTP(w, r)

			got := decodeBody(t, w)
			if got["requestId"] != "req-follower" {
				t.Errorf("requestId = %v, want req-follower", got["requestId"])
			}
			v, present := got["runRequestId"]
			if present != tt.present || (tt.present && v != tt.want) {
				t.Errorf("runRequestId = %v (present %v), want %v (present %v)", v, present, tt.want, tt.present)
			}
		})
	}
}
