package ai

import (
	"encoding/json"
	"time"
)

// ProviderConfig holds the configuration needed to create an AI provider.
type ProviderConfig struct {
	Provider string // "anthropic" | "openai"
	APIKey   string
	Model    string
	// BaseURL overrides the provider's API root. Empty means the public
	// endpoint.
	BaseURL string
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-neutral chat-completion call.
type ChatRequest struct {
	// Model overrides the provider's default model when set.
	Model       string
	Temperature float64
	// JSONMode asks the provider to return a single JSON object.
	JSONMode bool
	Messages []Message
}

// SpeechRequest is a text-to-speech call.
type SpeechRequest struct {
	Model string
	Voice string
	Input string
}

// ArticleEntry is the article metadata an analysis prompt is built from.
type ArticleEntry struct {
	Title       string
	Source      string
	PublishedAt *time.Time
	Excerpt     string
	Tags        []string
}

// DigestEntry is one analyzed article fed into the daily digest prompt.
type DigestEntry struct {
	Title    string
	Source   string
	Analysis json.RawMessage
}
