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

// Compile-time interface check.
var _ Completer = (*AnthropicProvider)(nil)

const anthropicBaseURL = "https://api.anthropic.com/v1"

// jsonOnlyInstruction stands in for OpenAI's JSON response mode, which the
// Messages API lacks.
const jsonOnlyInstruction = "Respond with a single JSON object and nothing else."

// AnthropicProvider implements Completer using the Anthropic Messages API.
// It has no speech endpoint.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicProvider creates an AnthropicProvider with a 60-second timeout
// HTTP client.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: anthropicBaseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// anthropicRequest is the request body for the Anthropic Messages API.
type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

// anthropicResponse is the response body from the Anthropic Messages API.
type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete calls the Messages API. System messages are folded into the
// top-level system prompt.
func (p *AnthropicProvider) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if err := config.Require("ANTHROPIC_API_KEY", p.apiKey); err != nil {
		return "", retry.Permanent(err)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	var (
		system   []string
		messages []Message
	)
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		messages = append(messages, m)
	}
	if req.JSONMode {
		system = append(system, jsonOnlyInstruction)
	}

	reqBody := anthropicRequest{
		Model:       model,
		MaxTokens:   4096,
		Temperature: req.Temperature,
		System:      strings.Join(system, "\n\n"),
		Messages:    messages,
	}

	text, err := p.callAPI(ctx, reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	return text, nil
}

// callAPI makes an HTTP request to the Anthropic Messages API and returns
// the text content from the first content block.
func (p *AnthropicProvider) callAPI(ctx context.Context, reqBody anthropicRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	slog.Debug("calling Anthropic API", "model", reqBody.Model)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: "anthropic", StatusCode: resp.StatusCode}
		if apiResp.Error != nil {
			apiErr.Message = apiResp.Error.Message
		}
		return "", classify(apiErr)
	}

	if len(apiResp.Content) == 0 || strings.TrimSpace(apiResp.Content[0].Text) == "" {
		return "", errors.New("empty response: no content blocks returned")
	}

	return apiResp.Content[0].Text, nil
}
