// Package api wires the HTTP surface: generation endpoints, ingestion, the
// read API and the AI news feed.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/econbrief/econbrief/internal/api/handlers"
	"github.com/econbrief/econbrief/internal/storage"
)

// Deps are the components the router dispatches to.
type Deps struct {
	Store     *storage.Store
	Generator handlers.Generator
	Ingester  handlers.FeedIngester
	News      handlers.NewsSource
	// Uploads serves locally stored audio. Nil when audio lives in S3.
	Uploads UploadServer
}

// UploadServer exposes a local upload directory over HTTP.
type UploadServer interface {
	PublicPath() string
	Handler() http.Handler
}

// NewRouter creates and configures the HTTP router with all routes.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware. RequestID runs first so every later layer can log
	// the id.
	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(Recovery)
	r.Use(CORS)

	r.Get("/health", handlers.Health())

	// Generation pipeline.
	r.Post("/articles/{id}/analyze", handlers.Analyze(d.Generator))
	r.Post("/articles/{id}/script", handlers.Script(d.Generator))
	r.Post("/scripts/{id}/audio", handlers.Audio(d.Generator))
	r.Post("/digest/daily", handlers.DailyDigest(d.Generator))
	r.Post("/ingest/rss", handlers.IngestRSS(d.Ingester))

	// Read API.
	r.Get("/articles", handlers.ListArticles(d.Store))
	r.Get("/articles/{id}", handlers.GetArticle(d.Store))
	r.Get("/tags", handlers.ListTags(d.Store))
	r.Get("/logs", handlers.ListLogs(d.Store))
	r.Get("/sources", handlers.ListSources(d.Store))

	r.Route("/api", func(api chi.Router) {
		api.Get("/news", handlers.GetNews(d.News))
	})

	if d.Uploads != nil {
		r.Mount(d.Uploads.PublicPath(), d.Uploads.Handler())
	}

	return r
}
