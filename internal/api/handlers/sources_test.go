package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/econbrief/econbrief/internal/models"
	"github.com/econbrief/econbrief/internal/storage"
)

func TestListSources(t *testing.T) {
	store := newTestStore(t)

	w := httptest.NewRecorder()
	ListSources(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sources", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}

	var sources []models.Source
	if err := json.NewDecoder(w.Body).Decode(&sources); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(sources) != storage.DefaultSourceCount() {
		t.Fatalf("got %d sources, want %d", len(sources), storage.DefaultSourceCount())
	}

	var enabled int
	for _, s := range sources {
		if s.ID == "" || s.RSSURL == "" {
			t.Errorf("source missing id or url: %+v", s)
		}
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 || enabled == len(sources) {
		t.Errorf("expected a mix of enabled and disabled sources, got %d of %d enabled", enabled, len(sources))
	}
}
