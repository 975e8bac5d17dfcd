// Package pipeline turns stored articles into analyses, narration scripts,
// audio and the daily digest email. Each step calls one external service
// through the retry envelope and records terminal failures in the audit
// log before returning them.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/econbrief/econbrief/internal/ai"
	"github.com/econbrief/econbrief/internal/analysis"
	"github.com/econbrief/econbrief/internal/audit"
	"github.com/econbrief/econbrief/internal/blobstore"
	"github.com/econbrief/econbrief/internal/config"
	"github.com/econbrief/econbrief/internal/mail"
	"github.com/econbrief/econbrief/internal/models"
	"github.com/econbrief/econbrief/internal/retry"
	"github.com/econbrief/econbrief/internal/storage"
)

// Store is the persistence the pipeline needs.
type Store interface {
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	LatestAnalysis(ctx context.Context, articleID string) (*models.Analysis, error)
	CreateAnalysis(ctx context.Context, a *models.Analysis) error
	RecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisWithArticle, error)
	GetScript(ctx context.Context, id string) (*models.Script, error)
	CreateScript(ctx context.Context, sc *models.Script) error
	CreateAudioFile(ctx context.Context, af *models.AudioFile) error
	CreateMailLog(ctx context.Context, l *models.MailLog) error
}

// ErrorLogger records external service failures.
type ErrorLogger interface {
	Log(ctx context.Context, e audit.Entry)
}

// Deps are the collaborators a Service calls.
type Deps struct {
	Store    Store
	Chat     ai.Completer
	Speech   ai.Synthesizer
	Uploader blobstore.Uploader
	Mailer   mail.Sender
	Errors   ErrorLogger
}

// Service runs the generation steps.
type Service struct {
	deps  Deps
	cfg   *config.Config
	retry retry.Policy
	now   func() time.Time
}

// New creates a Service. cfg is read on every call, never copied into
// package state.
func New(cfg *config.Config, deps Deps) *Service {
	return &Service{
		deps: deps,
		cfg:  cfg,
		retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay(),
		},
		now: time.Now,
	}
}

// AnalysisResult identifies a stored analysis.
type AnalysisResult struct {
	AnalysisID string `json:"analysisId"`
	ArticleID  string `json:"articleId"`
	SourceID   string `json:"sourceId"`
}

// ScriptResult identifies a stored script.
type ScriptResult struct {
	ScriptID         string `json:"scriptId"`
	ArticleID        string `json:"articleId"`
	SourceID         string `json:"sourceId"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
}

// AudioResult identifies a stored audio file.
type AudioResult struct {
	AudioFileID string `json:"audioFileId"`
	PublicURL   string `json:"publicUrl"`
	ScriptID    string `json:"scriptId"`
	ArticleID   string `json:"articleId,omitempty"`
	SourceID    string `json:"sourceId,omitempty"`
}

// Analyze generates and stores a structured analysis of an article.
func (s *Service) Analyze(ctx context.Context, requestID, articleID string) (*AnalysisResult, error) {
	fail := func(sourceID string, err error) error {
		return &Error{Op: "analyze", ArticleID: articleID, SourceID: sourceID, Err: err}
	}

	// 1. Load the article with its source name.
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, fail("", err)
	}

	// 2. Ask the model for JSON.
	systemPrompt, userPrompt := ai.AnalysisPrompt(ai.ArticleEntry{
		Title:       article.Title,
		Source:      article.SourceName,
		PublishedAt: article.PublishedAt,
		Excerpt:     article.Excerpt,
		Tags:        article.Tags,
	}, s.cfg.AI.Language)

	raw, err := retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.deps.Chat.Complete(ctx, ai.ChatRequest{
			Model:       s.cfg.AI.Model,
			Temperature: s.cfg.AI.AnalysisTemperature,
			JSONMode:    true,
			Messages:    ai.Messages(systemPrompt, userPrompt),
		})
	})
	if err != nil {
		s.deps.Errors.Log(ctx, audit.Entry{
			Service:   models.ServiceOpenAI,
			Context:   models.ContextAnalysis,
			Err:       err,
			RequestID: requestID,
			ArticleID: article.ID,
			SourceID:  article.SourceID,
		})
		return nil, fail(article.SourceID, &UpstreamError{Service: models.ServiceOpenAI, Err: err})
	}

	// 3. Parse and validate; both failures are reported without retry.
	payload, err := analysis.ParseAndValidate(raw)
	if err != nil {
		slog.Warn("model returned unusable analysis",
			"request_id", requestID,
			"article_id", article.ID,
			"error", err,
		)
		return nil, fail(article.SourceID, err)
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fail(article.SourceID, fmt.Errorf("encoding analysis: %w", err))
	}

	// 4. Persist.
	a := &models.Analysis{
		ArticleID:   article.ID,
		Model:       s.cfg.AI.Model,
		ContentJSON: content,
	}
	if err := s.deps.Store.CreateAnalysis(ctx, a); err != nil {
		return nil, fail(article.SourceID, err)
	}

	slog.Info("analysis created", "request_id", requestID, "article_id", article.ID, "analysis_id", a.ID)
	return &AnalysisResult{AnalysisID: a.ID, ArticleID: article.ID, SourceID: article.SourceID}, nil
}

// Script generates narration for an article from its latest analysis.
func (s *Service) Script(ctx context.Context, requestID, articleID string) (*ScriptResult, error) {
	fail := func(sourceID string, err error) error {
		return &Error{Op: "script", ArticleID: articleID, SourceID: sourceID, Err: err}
	}

	// 1. Load the article and its newest analysis.
	article, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return nil, fail("", err)
	}

	latest, err := s.deps.Store.LatestAnalysis(ctx, article.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fail(article.SourceID, ErrNoAnalysis)
		}
		return nil, fail(article.SourceID, err)
	}

	// 2. Generate the script.
	systemPrompt, userPrompt := ai.ScriptPrompt(article.Title, article.SourceName, latest.ContentJSON, s.cfg.AI.Language)
	text, err := s.complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		s.deps.Errors.Log(ctx, audit.Entry{
			Service:   models.ServiceOpenAI,
			Context:   models.ContextArticleScript,
			Err:       err,
			RequestID: requestID,
			ArticleID: article.ID,
			SourceID:  article.SourceID,
		})
		return nil, fail(article.SourceID, &UpstreamError{Service: models.ServiceOpenAI, Err: err})
	}

	// 3. Persist.
	sc := &models.Script{ArticleID: article.ID, Kind: models.ScriptKindArticle, Text: text}
	if err := s.deps.Store.CreateScript(ctx, sc); err != nil {
		return nil, fail(article.SourceID, err)
	}

	minutes := EstimateSpokenMinutes(sc.Text)
	slog.Info("script created",
		"request_id", requestID,
		"article_id", article.ID,
		"script_id", sc.ID,
		"estimated_minutes", minutes,
	)
	return &ScriptResult{
		ScriptID:         sc.ID,
		ArticleID:        article.ID,
		SourceID:         article.SourceID,
		EstimatedMinutes: minutes,
	}, nil
}

// Audio synthesizes speech for a script and uploads it. The script stays
// committed when a later step fails.
func (s *Service) Audio(ctx context.Context, requestID, scriptID string) (*AudioResult, error) {
	var articleID, sourceID string
	fail := func(err error) error {
		return &Error{Op: "audio", ArticleID: articleID, SourceID: sourceID, ScriptID: scriptID, Err: err}
	}

	// 1. Load the script and, for article scripts, its source.
	sc, err := s.deps.Store.GetScript(ctx, scriptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fail(fmt.Errorf("script %s: %w", scriptID, ErrNotFound))
		}
		return nil, fail(err)
	}
	articleID = sc.ArticleID
	if articleID != "" {
		if article, err := s.deps.Store.GetArticle(ctx, articleID); err == nil {
			sourceID = article.SourceID
		}
	}

	// 2. Synthesize, upload and record.
	key := fmt.Sprintf("audio/%s-%d.mp3", sc.ID, s.now().UnixMilli())
	af, err := s.synthesizeAndStore(ctx, sc, key, audit.Entry{
		Context:   models.ContextScriptAudio,
		RequestID: requestID,
		ArticleID: articleID,
		ScriptID:  sc.ID,
		SourceID:  sourceID,
	})
	if err != nil {
		return nil, fail(err)
	}

	slog.Info("audio created", "request_id", requestID, "script_id", sc.ID, "audio_file_id", af.ID)
	return &AudioResult{
		AudioFileID: af.ID,
		PublicURL:   af.PublicURL,
		ScriptID:    sc.ID,
		ArticleID:   articleID,
		SourceID:    sourceID,
	}, nil
}

// loadArticle maps a missing row to ErrNotFound.
func (s *Service) loadArticle(ctx context.Context, id string) (*models.Article, error) {
	article, err := s.deps.Store.GetArticle(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return article, nil
}

// complete runs a free-text completion at the script temperature and trims
// the result.
func (s *Service) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	text, err := retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.deps.Chat.Complete(ctx, ai.ChatRequest{
			Model:       s.cfg.AI.Model,
			Temperature: s.cfg.AI.ScriptTemperature,
			Messages:    ai.Messages(systemPrompt, userPrompt),
		})
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// synthesizeAndStore turns a script into an uploaded audio file and stores
// its row. Failures of the speech or storage service are audited with
// entry's context and ids.
func (s *Service) synthesizeAndStore(ctx context.Context, sc *models.Script, key string, entry audit.Entry) (*models.AudioFile, error) {
	audio, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]byte, error) {
		return s.deps.Speech.Synthesize(ctx, ai.SpeechRequest{
			Model: s.cfg.Speech.Model,
			Voice: s.cfg.Speech.Voice,
			Input: sc.Text,
		})
	})
	if err != nil {
		entry.Service, entry.Err = models.ServiceOpenAI, err
		s.deps.Errors.Log(ctx, entry)
		return nil, &UpstreamError{Service: models.ServiceOpenAI, Err: err}
	}

	stored, err := retry.Do(ctx, s.retry, func(ctx context.Context) (blobstore.StoredFile, error) {
		return s.deps.Uploader.Upload(ctx, key, audio, blobstore.ContentTypeMP3)
	})
	if err != nil {
		entry.Service, entry.Err = models.ServiceS3, err
		s.deps.Errors.Log(ctx, entry)
		return nil, &UpstreamError{Service: models.ServiceS3, Err: err}
	}

	af := &models.AudioFile{
		ScriptID:   sc.ID,
		StorageKey: stored.StorageKey,
		PublicURL:  stored.PublicURL,
	}
	if err := s.deps.Store.CreateAudioFile(ctx, af); err != nil {
		return nil, err
	}
	return af, nil
}
