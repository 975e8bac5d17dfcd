package models

import "time"

// MailStatus is the outcome of a mail send attempt.
type MailStatus string

const (
	MailStatusSuccess MailStatus = "SUCCESS"
	MailStatusFailure MailStatus = "FAILURE"
)

// MailKindDailyDigest tags mail logs written by the daily digest.
const MailKindDailyDigest = "DAILY_DIGEST"

// MailLog records one digest send attempt, successful or not.
type MailLog struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	ToEmail      string     `json:"toEmail"`
	Subject      string     `json:"subject"`
	Status       MailStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Service names an external dependency whose failures are audited.
type Service string

const (
	ServiceOpenAI   Service = "OPENAI"
	ServiceSendGrid Service = "SENDGRID"
	ServiceS3       Service = "S3"
	ServiceRSS      Service = "RSS"
)

// ErrorContext names the operation during which a service failed.
type ErrorContext string

const (
	ContextAnalysis          ErrorContext = "ANALYSIS"
	ContextArticleScript     ErrorContext = "ARTICLE_SCRIPT"
	ContextScriptAudio       ErrorContext = "SCRIPT_AUDIO"
	ContextDailyDigestScript ErrorContext = "DAILY_DIGEST_SCRIPT"
	ContextDailyDigestAudio  ErrorContext = "DAILY_DIGEST_AUDIO"
	ContextDailyDigestEmail  ErrorContext = "DAILY_DIGEST_EMAIL"
	ContextRSSIngest         ErrorContext = "RSS_INGEST"
)

// ServiceErrorLog is an append-only audit row for an external failure.
type ServiceErrorLog struct {
	ID           string       `json:"id"`
	Service      Service      `json:"service"`
	Context      ErrorContext `json:"context"`
	ErrorMessage string       `json:"errorMessage"`
	RequestID    string       `json:"requestId"`
	ArticleID    string       `json:"articleId,omitempty"`
	ScriptID     string       `json:"scriptId,omitempty"`
	SourceID     string       `json:"sourceId,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// NewsItem is a cached AI news headline served to the read-aloud client.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
}
