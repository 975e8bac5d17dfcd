package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/econbrief/econbrief/internal/storage"
)

// TagLimit caps the tag list.
const TagLimit = 20

// ListArticles handles GET /articles?q={query}&tag={tag}&limit={limit}.
func ListArticles(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := storage.ArticleFilter{
			Query: strings.TrimSpace(q.Get("q")),
			Tag:   strings.TrimSpace(q.Get("tag")),
			Limit: queryLimit(r, storage.DefaultArticleLimit, 200),
		}

		articles, err := store.ListArticles(r.Context(), filter)
		if err != nil {
			slog.Error("failed to list articles", "query", filter.Query, "tag", filter.Tag, "error", err)
			writeError(w, r, http.StatusInternalServerError, "Failed to list articles")
			return
		}

		writeJSON(w, http.StatusOK, articles)
	}
}

// GetArticle handles GET /articles/{id}. It returns the article with its
// latest analysis and its scripts, each with its latest audio.
func GetArticle(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, r, http.StatusBadRequest, "article id is required")
			return
		}

		detail, err := store.GetArticleDetail(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "Article not found")
				return
			}
			slog.Error("failed to get article", "id", id, "error", err)
			writeError(w, r, http.StatusInternalServerError, "Failed to get article")
			return
		}

		writeJSON(w, http.StatusOK, detail)
	}
}

// ListTags handles GET /tags. It returns distinct article tags for the
// filter bar.
func ListTags(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := store.ListTags(r.Context(), TagLimit)
		if err != nil {
			slog.Error("failed to list tags", "error", err)
			writeError(w, r, http.StatusInternalServerError, "Failed to list tags")
			return
		}

		writeJSON(w, http.StatusOK, tags)
	}
}
