package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/econbrief/econbrief/internal/config"
	"github.com/econbrief/econbrief/internal/models"
	"github.com/econbrief/econbrief/internal/news"
)

type fakeNews struct {
	resp *news.Response
	err  error
}

func (f fakeNews) Latest(context.Context) (*news.Response, error) { return f.resp, f.err }

func TestGetNews(t *testing.T) {
	fetched := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		src        fakeNews
		wantStatus int
		wantCode   string
	}{
		{
			name: "fresh headlines",
			src: fakeNews{resp: &news.Response{
				Items:     []models.NewsItem{{ID: "https://n.example.com/1", Title: "Chips", URL: "https://n.example.com/1", Source: "Wire", PublishedAt: fetched}},
				FetchedAt: fetched,
			}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing api key",
			src:        fakeNews{err: fmt.Errorf("fetching news: %w", &config.MissingError{Names: []string{"NEWS_API_KEY"}})},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
		{
			name:       "upstream failure",
			src:        fakeNews{err: &news.StatusError{StatusCode: 503, Message: "unavailable"}},
			wantStatus: http.StatusBadGateway,
			wantCode:   "upstream_failure",
		},
		{
			name:       "network failure",
			src:        fakeNews{err: errors.New("dial tcp: timeout")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "upstream_failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			GetNews(tt.src).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/news", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
			got := decodeBody(t, w)
			if tt.wantCode == "" {
				items, _ := got["items"].([]any)
				if len(items) != 1 || got["fetched_at"] == nil {
					t.Errorf("body = %v", got)
				}
				return
			}
			if got["error"] != tt.wantCode {
				t.Errorf("error = %v, want %q", got["error"], tt.wantCode)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	Health().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	if got := decodeBody(t, w); got["status"] != "ok" {
		t.Errorf("status = %v, want ok", got["status"])
	}
}
