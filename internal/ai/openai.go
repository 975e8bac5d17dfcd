package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/econbrief/econbrief/internal/config"
	"github.com/econbrief/econbrief/internal/retry"
)

// Compile-time interface checks.
var (
	_ Completer   = (*OpenAIProvider)(nil)
	_ Synthesizer = (*OpenAIProvider)(nil)
)

const openaiBaseURL = "https://api.openai.com/v1"

// OpenAIProvider implements Completer and Synthesizer using the OpenAI
// Chat Completions and Audio Speech APIs.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider creates an OpenAIProvider with a 60-second timeout
// HTTP client. An empty apiKey is allowed; every call then fails with a
// *config.MissingError.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: openaiBaseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// openaiChatRequest is the request body for the Chat Completions API.
type openaiChatRequest struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Messages       []Message       `json:"messages"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// openaiChatResponse is the response body from the Chat Completions API.
type openaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *openaiErrorBody `json:"error"`
}

type openaiErrorBody struct {
	Message string `json:"message"`
}

// openaiSpeechRequest is the request body for the Audio Speech API.
type openaiSpeechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// Complete calls the Chat Completions API and returns the content of the
// first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if err := p.requireKey(); err != nil {
		return "", err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	reqBody := openaiChatRequest{
		Model:       model,
		Temperature: req.Temperature,
		Messages:    req.Messages,
	}
	if req.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	slog.Debug("calling OpenAI chat API", "model", model, "json_mode", req.JSONMode)

	respBody, err := p.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	var apiResp openaiChatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("openai chat: parsing response: %w", err)
	}
	if len(apiResp.Choices) == 0 || strings.TrimSpace(apiResp.Choices[0].Message.Content) == "" {
		return "", errors.New("openai chat: empty response")
	}

	return apiResp.Choices[0].Message.Content, nil
}

// Synthesize calls the Audio Speech API and returns MP3 bytes.
func (p *OpenAIProvider) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if err := p.requireKey(); err != nil {
		return nil, err
	}

	slog.Debug("calling OpenAI speech API", "model", req.Model, "voice", req.Voice, "chars", len([]rune(req.Input)))

	audio, err := p.post(ctx, "/audio/speech", openaiSpeechRequest{
		Model:          req.Model,
		Voice:          req.Voice,
		Input:          req.Input,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("openai speech: empty audio")
	}
	return audio, nil
}

func (p *OpenAIProvider) requireKey() error {
	if err := config.Require("OPENAI_API_KEY", p.apiKey); err != nil {
		return retry.Permanent(err)
	}
	return nil
}

// post sends a JSON body to path and returns the raw response body of a
// 2xx response. Other statuses become an *APIError, classified for retry.
func (p *OpenAIProvider) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Provider: "openai", StatusCode: resp.StatusCode}
		var errResp openaiChatResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != nil {
			apiErr.Message = errResp.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, classify(apiErr)
	}

	return respBody, nil
}
