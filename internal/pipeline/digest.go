package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/econbrief/econbrief/internal/ai"
	"github.com/econbrief/econbrief/internal/audit"
	"github.com/econbrief/econbrief/internal/mail"
	"github.com/econbrief/econbrief/internal/models"
	"github.com/econbrief/econbrief/internal/retry"
)

const (
	// DigestSize is how many of the newest analyses feed the digest.
	DigestSize = 8

	// DigestSubject is the subject line of the digest email.
	DigestSubject = "EconBrief 今日のまとめ"

	digestBodyLimit = 1000
)

// DigestResult identifies what the daily digest produced.
type DigestResult struct {
	LogID       string `json:"logId"`
	ScriptID    string `json:"scriptId"`
	AudioFileID string `json:"audioFileId"`
	PublicURL   string `json:"publicUrl"`
}

// DailyDigest narrates the newest analyses, uploads the audio and emails a
// link to the configured recipient. Once the recipient and at least one
// analysis are known, every outcome writes exactly one mail log row:
// SUCCESS after the send, FAILURE with the error message otherwise.
func (s *Service) DailyDigest(ctx context.Context, requestID string) (*DigestResult, error) {
	// 1. Guards that fire before any work or mail log.
	to := strings.TrimSpace(s.cfg.Mail.To)
	if to == "" {
		return nil, &Error{Op: "daily digest", Err: ErrNoRecipient}
	}

	analyses, err := s.deps.Store.RecentAnalyses(ctx, DigestSize)
	if err != nil {
		return nil, s.digestFailure(ctx, to, &Error{Op: "daily digest", Err: err})
	}
	if len(analyses) == 0 {
		return nil, &Error{Op: "daily digest", Err: ErrNoAnalyses}
	}

	result, err := s.runDigest(ctx, requestID, to, analyses)
	if err != nil {
		return nil, s.digestFailure(ctx, to, err)
	}
	return result, nil
}

func (s *Service) runDigest(ctx context.Context, requestID, to string, analyses []models.AnalysisWithArticle) (*DigestResult, error) {
	var scriptID string
	fail := func(err error) error {
		return &Error{Op: "daily digest", ScriptID: scriptID, Err: err}
	}

	// 2. One combined script.
	entries := make([]ai.DigestEntry, len(analyses))
	for i, a := range analyses {
		entries[i] = ai.DigestEntry{Title: a.ArticleTitle, Source: a.SourceName, Analysis: a.ContentJSON}
	}
	systemPrompt, userPrompt := ai.DigestPrompt(entries, s.cfg.AI.Language)

	text, err := s.complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		s.deps.Errors.Log(ctx, audit.Entry{
			Service:   models.ServiceOpenAI,
			Context:   models.ContextDailyDigestScript,
			Err:       err,
			RequestID: requestID,
		})
		return nil, fail(&UpstreamError{Service: models.ServiceOpenAI, Err: err})
	}

	sc := &models.Script{Kind: models.ScriptKindDailyDigest, Text: text}
	if err := s.deps.Store.CreateScript(ctx, sc); err != nil {
		return nil, fail(err)
	}
	scriptID = sc.ID

	// 3. Audio.
	key := fmt.Sprintf("audio/daily-%s-%d.mp3", sc.ID, s.now().UnixMilli())
	af, err := s.synthesizeAndStore(ctx, sc, key, audit.Entry{
		Context:   models.ContextDailyDigestAudio,
		RequestID: requestID,
		ScriptID:  sc.ID,
	})
	if err != nil {
		return nil, fail(err)
	}

	// 4. Mail.
	msg := mail.Message{To: to, Subject: DigestSubject, Text: digestBody(af.PublicURL, sc.Text)}
	_, err = retry.Do(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.deps.Mailer.Send(ctx, msg)
	})
	if err != nil {
		s.deps.Errors.Log(ctx, audit.Entry{
			Service:   models.ServiceSendGrid,
			Context:   models.ContextDailyDigestEmail,
			Err:       err,
			RequestID: requestID,
			ScriptID:  sc.ID,
		})
		return nil, fail(&UpstreamError{Service: models.ServiceSendGrid, Err: err})
	}

	// 5. Success row.
	sentAt := s.now()
	mailLog := &models.MailLog{
		Kind:    models.MailKindDailyDigest,
		ToEmail: to,
		Subject: DigestSubject,
		Status:  models.MailStatusSuccess,
		SentAt:  &sentAt,
	}
	if err := s.deps.Store.CreateMailLog(ctx, mailLog); err != nil {
		return nil, fail(err)
	}

	slog.Info("daily digest sent",
		"request_id", requestID,
		"analyses", len(analyses),
		"script_id", sc.ID,
		"log_id", mailLog.ID,
	)
	return &DigestResult{
		LogID:       mailLog.ID,
		ScriptID:    sc.ID,
		AudioFileID: af.ID,
		PublicURL:   af.PublicURL,
	}, nil
}

// digestFailure writes the FAILURE mail log for err and returns err with
// the log id attached. A failed write is only reported on the process log.
func (s *Service) digestFailure(ctx context.Context, to string, err error) error {
	mailLog := &models.MailLog{
		Kind:         models.MailKindDailyDigest,
		ToEmail:      to,
		Subject:      DigestSubject,
		Status:       models.MailStatusFailure,
		ErrorMessage: audit.Message(err),
	}
	if werr := s.deps.Store.CreateMailLog(context.WithoutCancel(ctx), mailLog); werr != nil {
		slog.Error("failed to write digest failure log", "error", werr, "original_error", err)
		return err
	}

	var pe *Error
	if errors.As(err, &pe) {
		pe.LogID = mailLog.ID
	}
	return err
}

// digestBody is the plain-text email: a greeting, the audio link and the
// start of the script.
func digestBody(publicURL, script string) string {
	runes := []rune(script)
	if len(runes) > digestBodyLimit {
		runes = runes[:digestBodyLimit]
	}
	return strings.Join([]string{
		"本日の経済ニュースまとめです。",
		"",
		"音声はこちら: " + publicURL,
		"",
		"----",
		string(runes),
	}, "\n")
}
