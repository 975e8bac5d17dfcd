package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/econbrief/econbrief/internal/analysis"
	"github.com/econbrief/econbrief/internal/pipeline"
)

// Generator runs the generation pipeline.
type Generator interface {
	Analyze(ctx context.Context, requestID, articleID string) (*pipeline.AnalysisResult, error)
	Script(ctx context.Context, requestID, articleID string) (*pipeline.ScriptResult, error)
	Audio(ctx context.Context, requestID, scriptID string) (*pipeline.AudioResult, error)
	DailyDigest(ctx context.Context, requestID string) (*pipeline.DigestResult, error)
}

// Analyze handles POST /articles/{id}/analyze.
func Analyze(gen Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r)
		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, r, http.StatusBadRequest, "article id is required")
			return
		}

		res, err := gen.Analyze(r.Context(), reqID, id)
		if err != nil {
			writeGenerationError(w, reqID, "Failed to generate analysis", err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Message string `json:"message"`
			*pipeline.AnalysisResult
			RequestID string `json:"requestId"`
		}{"Analysis created", res, reqID})
	}
}

// Script handles POST /articles/{id}/script.
func Script(gen Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r)
		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, r, http.StatusBadRequest, "article id is required")
			return
		}

		res, err := gen.Script(r.Context(), reqID, id)
		if err != nil {
			writeGenerationError(w, reqID, "Failed to generate script", err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Message string `json:"message"`
			*pipeline.ScriptResult
			RequestID string `json:"requestId"`
		}{"Script created", res, reqID})
	}
}

// Audio handles POST /scripts/{id}/audio.
func Audio(gen Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r)
		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, r, http.StatusBadRequest, "script id is required")
			return
		}

		res, err := gen.Audio(r.Context(), reqID, id)
		if err != nil {
			writeGenerationError(w, reqID, "Failed to generate audio", err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Message string `json:"message"`
			*pipeline.AudioResult
			RequestID string `json:"requestId"`
		}{"Audio created", res, reqID})
	}
}

// DailyDigest handles POST /digest/daily.
func DailyDigest(gen Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r)

		res, err := gen.DailyDigest(r.Context(), reqID)
		if err != nil {
			writeGenerationError(w, reqID, "Failed to send daily digest", err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Message string `json:"message"`
			*pipeline.DigestResult
			RequestID string `json:"requestId"`
		}{"Daily digest sent", res, reqID})
	}
}

// writeGenerationError maps a pipeline failure to its status. Anything not
// recognized is logged and reported with fallback as a 500.
func writeGenerationError(w http.ResponseWriter, reqID, fallback string, err error) {
	body := errorBody{RequestID: reqID}

	var pe *pipeline.Error
	if errors.As(err, &pe) {
		body.ArticleID = pe.ArticleID
		body.SourceID = pe.SourceID
		body.ScriptID = pe.ScriptID
		body.LogID = pe.LogID
	}

	var (
		status int
		ve     *analysis.ValidationError
	)
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		status = http.StatusNotFound
		body.Message = "Article not found"
		if body.ScriptID != "" {
			body.Message = "Script not found"
		}
	case errors.Is(err, pipeline.ErrNoAnalysis):
		status = http.StatusBadRequest
		body.Message = "Generate an analysis for this article first"
	case errors.Is(err, pipeline.ErrNoRecipient):
		status = http.StatusBadRequest
		body.Message = "MAIL_TO is not configured"
	case errors.Is(err, pipeline.ErrNoAnalyses):
		status = http.StatusBadRequest
		body.Message = "No analyzed articles yet"
	case errors.Is(err, pipeline.ErrPrecondition):
		status = http.StatusBadRequest
		body.Message = err.Error()
	case errors.Is(err, pipeline.ErrInvalidJSON):
		status = http.StatusUnprocessableEntity
		body.Error = "invalid_json"
		body.Message = "The model returned invalid JSON"
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
		body.Error = "invalid_schema"
		body.Message = "The analysis JSON does not match the schema"
		body.Violations = ve.Violations
	default:
		status = http.StatusInternalServerError
		body.Message = fallback
		slog.Error(fallback, "request_id", reqID, "error", err)
	}

	if body.Error == "" {
		body.Error = errorCode(status)
	}
	writeJSON(w, status, body)
}
