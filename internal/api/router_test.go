package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/econbrief/econbrief/internal/ai"
	"github.com/econbrief/econbrief/internal/audit"
	"github.com/econbrief/econbrief/internal/blobstore"
	"github.com/econbrief/econbrief/internal/config"
	"github.com/econbrief/econbrief/internal/feeds"
	"github.com/econbrief/econbrief/internal/mail"
	"github.com/econbrief/econbrief/internal/models"
	"github.com/econbrief/econbrief/internal/news"
	"github.com/econbrief/econbrief/internal/pipeline"
	"github.com/econbrief/econbrief/internal/retry"
	"github.com/econbrief/econbrief/internal/storage"
)

const validAnalysis = `{"summary":"Rates held.","background":[],"timeline_positioning":[],"geopolitical_impact":[],
"market_impact":{"equities":[],"rates":[],"fx":[],"commodities":[],"credit":[]},"uncertainties":[],"what_to_watch_next":[]}`

type stubChat struct{ reply string }

func (s stubChat) Complete(context.Context, ai.ChatRequest) (string, error) { return s.reply, nil }

type stubSpeech struct{}

func (stubSpeech) Synthesize(context.Context, ai.SpeechRequest) ([]byte, error) {
	return []byte("mp3"), nil
}

type stubMailer struct{ err error }

func (s stubMailer) Send(context.Context, mail.Message) error { return s.err }

type stubFeeds struct{ feed *gofeed.Feed }

func (s stubFeeds) Fetch(context.Context, string) (*gofeed.Feed, error) { return s.feed, nil }

type stubNews struct{}

func (stubNews) Fetch(context.Context) ([]models.NewsItem, error) {
	return []models.NewsItem{{ID: "https://n.example.com/1", Title: "AI", URL: "https://n.example.com/1", Source: "Wire", PublishedAt: time.Now()}}, nil
}

type testServer struct {
	store  *storage.Store
	cfg    *config.Config
	chat   *stubChat
	mailer *stubMailer
	router http.Handler
	dir    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	store := storage.NewStore(db)
	if err := store.SyncSources(context.Background(), []models.Source{
		{ID: "reuters", Name: "Reuters", RSSURL: "https://reuters.example.com/rss", Enabled: true},
	}); err != nil {
		t.Fatalf("SyncSources error: %v", err)
	}

	dir := t.TempDir()
	uploads := blobstore.NewLocalStore(dir, "/uploads", "http://localhost:8080")
	cfg := &config.Config{
		AI:     config.AIConfig{Model: "gpt-test", Language: "Japanese"},
		Speech: config.SpeechConfig{Model: "gpt-4o-mini-tts", Voice: "alloy"},
		Mail:   config.MailConfig{To: "desk@example.com"},
		Retry:  config.RetryConfig{MaxAttempts: 2, BaseDelayMS: 1},
	}

	ts := &testServer{store: store, cfg: cfg, chat: &stubChat{reply: validAnalysis}, mailer: &stubMailer{}, dir: dir}
	errorLog := audit.NewLogger(store)
	gen := pipeline.New(cfg, pipeline.Deps{
		Store:    store,
		Chat:     chatFunc(func() ai.Completer { return *ts.chat }),
		Speech:   stubSpeech{},
		Uploader: uploads,
		Mailer:   mailerFunc(func() mail.Sender { return *ts.mailer }),
		Errors:   errorLog,
	})
	feed := &gofeed.Feed{Items: []*gofeed.Item{
		{Title: "Rate Decision", Link: "https://reuters.example.com/rate?utm_source=x", Description: "Central bank holds rates", Categories: []string{"rates", "policy"}},
	}}
	policy := retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}

	ts.router = NewRouter(Deps{
		Store:     store,
		Generator: gen,
		Ingester:  feeds.NewIngester(stubFeeds{feed: feed}, store, errorLog, feeds.Options{Retry: policy}),
		News:      news.NewService(stubNews{}, store, policy),
		Uploads:   uploads,
	})
	return ts
}

// chatFunc and mailerFunc let tests swap collaborators after wiring.
type chatFunc func() ai.Completer

func (f chatFunc) Complete(ctx context.Context, req ai.ChatRequest) (string, error) {
	return f().Complete(ctx, req)
}

type mailerFunc func() mail.Sender

func (f mailerFunc) Send(ctx context.Context, msg mail.Message) error { return f().Send(ctx, msg) }

func (ts *testServer) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(method, path, nil))

	var body map[string]any
	if w.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s %s: decoding body %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, body
}

func TestRouter_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	// Ingest.
	w, body := ts.do(t, http.MethodPost, "/ingest/rss")
	if w.Code != http.StatusOK || body["createdCount"] != float64(1) {
		t.Fatalf("ingest = %d %v", w.Code, body)
	}
	if body["requestId"] != w.Header().Get(RequestIDHeader) {
		t.Errorf("ingest requestId %v != header %q", body["requestId"], w.Header().Get(RequestIDHeader))
	}

	articles, err := ts.store.ListArticles(context.Background(), storage.ArticleFilter{})
	if err != nil || len(articles) != 1 {
		t.Fatalf("ListArticles = %d, %v", len(articles), err)
	}
	articleID := articles[0].ID

	// Script before analysis is a precondition failure.
	w, body = ts.do(t, http.MethodPost, "/articles/"+articleID+"/script")
	if w.Code != http.StatusBadRequest || body["requestId"] == "" {
		t.Fatalf("early script = %d %v", w.Code, body)
	}

	// Analyze.
	w, body = ts.do(t, http.MethodPost, "/articles/"+articleID+"/analyze")
	if w.Code != http.StatusOK {
		t.Fatalf("analyze = %d %v", w.Code, body)
	}
	if body["analysisId"] == "" || body["articleId"] != articleID || body["sourceId"] != "reuters" {
		t.Errorf("analyze body = %v", body)
	}

	// Script.
	ts.chat.reply = "もし利上げなら、円高が進むかもしれません。"
	w, body = ts.do(t, http.MethodPost, "/articles/"+articleID+"/script")
	if w.Code != http.StatusOK {
		t.Fatalf("script = %d %v", w.Code, body)
	}
	scriptID, _ := body["scriptId"].(string)

	// Audio, served back from the local upload mount.
	w, body = ts.do(t, http.MethodPost, "/scripts/"+scriptID+"/audio")
	if w.Code != http.StatusOK {
		t.Fatalf("audio = %d %v", w.Code, body)
	}
	publicURL, _ := body["publicUrl"].(string)
	const prefix = "http://localhost:8080"
	if len(publicURL) <= len(prefix) || publicURL[:len(prefix)] != prefix {
		t.Fatalf("publicUrl = %q", publicURL)
	}
	w, _ = ts.do(t, http.MethodGet, publicURL[len(prefix):])
	if w.Code != http.StatusOK || w.Body.String() != "mp3" {
		t.Errorf("GET uploaded audio = %d %q", w.Code, w.Body.String())
	}

	// Detail view shows the whole chain.
	w, body = ts.do(t, http.MethodGet, "/articles/"+articleID)
	if w.Code != http.StatusOK {
		t.Fatalf("detail = %d", w.Code)
	}
	if body["latestAnalysis"] == nil {
		t.Error("detail missing latestAnalysis")
	}
	scripts, _ := body["scripts"].([]any)
	if len(scripts) != 1 || scripts[0].(map[string]any)["latestAudio"] == nil {
		t.Errorf("detail scripts = %v", body["scripts"])
	}

	// Daily digest.
	w, body = ts.do(t, http.MethodPost, "/digest/daily")
	if w.Code != http.StatusOK || body["logId"] == "" {
		t.Fatalf("digest = %d %v", w.Code, body)
	}
}

func TestRouter_StatusMapping(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	a := &models.Article{SourceID: "reuters", URL: "https://r.example.com/1", URLNormalized: "https://r.example.com/1", Title: "Rate Decision"}
	if _, err := ts.store.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle error: %v", err)
	}

	tests := []struct {
		name       string
		setup      func()
		method     string
		path       string
		wantStatus int
		wantError  string
	}{
		{"unknown article", nil, http.MethodPost, "/articles/nope/analyze", http.StatusNotFound, "not_found"},
		{"unknown script", nil, http.MethodPost, "/scripts/nope/audio", http.StatusNotFound, "not_found"},
		{"invalid json", func() { ts.chat.reply = "not json" }, http.MethodPost, "/articles/" + a.ID + "/analyze", http.StatusUnprocessableEntity, "invalid_json"},
		{"schema mismatch", func() { ts.chat.reply = `{"summary":"x"}` }, http.MethodPost, "/articles/" + a.ID + "/analyze", http.StatusUnprocessableEntity, "invalid_schema"},
		{"no analyses for digest", nil, http.MethodPost, "/digest/daily", http.StatusBadRequest, "bad_request"},
		{"digest without recipient", func() { ts.cfg.Mail.To = "" }, http.MethodPost, "/digest/daily", http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			w, body := ts.do(t, tt.method, tt.path)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %v", w.Code, tt.wantStatus, body)
			}
			if body["error"] != tt.wantError || body["message"] == "" || body["requestId"] == "" {
				t.Errorf("body = %v", body)
			}
		})
	}

	logs, err := ts.store.ListMailLogs(ctx, 0)
	if err != nil || len(logs) != 0 {
		t.Errorf("mail logs after precondition failures = %d, %v", len(logs), err)
	}
}

func TestRouter_DigestMailFailure(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	a := &models.Article{SourceID: "reuters", URL: "https://r.example.com/1", URLNormalized: "https://r.example.com/1", Title: "Rate Decision"}
	if _, err := ts.store.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle error: %v", err)
	}
	if err := ts.store.CreateAnalysis(ctx, &models.Analysis{ArticleID: a.ID, Model: "m", ContentJSON: json.RawMessage(validAnalysis)}); err != nil {
		t.Fatalf("CreateAnalysis error: %v", err)
	}
	ts.chat.reply = "digest script"
	ts.mailer.err = retry.Permanent(errors.New("sendgrid: status 403"))

	w, body := ts.do(t, http.MethodPost, "/digest/daily")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500; body %v", w.Code, body)
	}

	logs, err := ts.store.ListMailLogs(ctx, 0)
	if err != nil || len(logs) != 1 {
		t.Fatalf("mail logs = %d, %v", len(logs), err)
	}
	if logs[0].Status != models.MailStatusFailure || logs[0].ErrorMessage == "" || body["logId"] != logs[0].ID {
		t.Errorf("mail log = %+v, body = %v", logs[0], body)
	}

	// The audio was uploaded before the mail failed.
	entries, err := os.ReadDir(filepath.Join(ts.dir, "audio"))
	if err != nil || len(entries) != 1 {
		t.Errorf("uploaded files = %d, %v", len(entries), err)
	}
}

func TestRouter_ReadAPI(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/articles", "/tags", "/logs", "/sources", "/api/news"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusOK {
				t.Errorf("GET %s = %d: %s", path, w.Code, w.Body.String())
			}
		})
	}
}
