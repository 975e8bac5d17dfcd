package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/econbrief/econbrief/internal/models"
)

func TestListLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, l := range []*models.ServiceErrorLog{
		{Service: models.ServiceOpenAI, Context: models.ContextAnalysis, ErrorMessage: "timeout", RequestID: "req-1", ArticleID: "a1"},
		{Service: models.ServiceS3, Context: models.ContextScriptAudio, ErrorMessage: "denied", RequestID: "req-1", ScriptID: "s1"},
		{Service: models.ServiceRSS, Context: models.ContextRSSIngest, ErrorMessage: "404", RequestID: "req-2", SourceID: "ft-markets"},
	} {
		if err := store.CreateServiceErrorLog(ctx, l); err != nil {
			t.Fatalf("CreateServiceErrorLog error: %v", err)
		}
	}
	if err := store.CreateMailLog(ctx, &models.MailLog{
		Kind: models.MailKindDailyDigest, ToEmail: "desk@example.com", Subject: "digest",
		Status: models.MailStatusFailure, ErrorMessage: "403",
	}); err != nil {
		t.Fatalf("CreateMailLog error: %v", err)
	}

	tests := []struct {
		query      string
		wantErrors int
	}{
		{"", 3},
		{"?requestId=req-1", 2},
		{"?service=s3", 1},
		{"?service=rss", 1},
		{"?requestId=req-2&service=RSS", 1},
		{"?requestId=req-1&service=RSS", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			ListLogs(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("got status %d, want 200", w.Code)
			}
			var got LogsResponse
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if len(got.ServiceErrors) != tt.wantErrors {
				t.Errorf("got %d service errors, want %d", len(got.ServiceErrors), tt.wantErrors)
			}
			if len(got.MailLogs) != 1 || got.MailLogs[0].Status != models.MailStatusFailure {
				t.Errorf("mail logs = %+v", got.MailLogs)
			}
		})
	}
}
