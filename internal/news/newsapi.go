// Package news serves a cached feed of AI-related headlines pulled from
// NewsAPI.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/econbrief/econbrief/internal/config"
	"github.com/econbrief/econbrief/internal/models"
	"github.com/econbrief/econbrief/internal/normalize"
	"github.com/econbrief/econbrief/internal/retry"
)

const (
	newsAPIBaseURL = "https://newsapi.org/v2"

	// MaxSummaryLength bounds a headline summary, ellipsis included.
	MaxSummaryLength = 200
)

// StatusError is a non-200 response from NewsAPI.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("newsapi: status %d", e.StatusCode)
	}
	return fmt.Sprintf("newsapi: status %d: %s", e.StatusCode, e.Message)
}

// Client queries the NewsAPI "everything" endpoint.
type Client struct {
	apiKey   string
	keywords []string
	pageSize int
	baseURL  string
	client   *http.Client
	now      func() time.Time
}

// NewClient creates a Client with a 15-second timeout. An empty API key is
// allowed; Fetch then fails with a *config.MissingError.
func NewClient(cfg config.NewsConfig) *Client {
	return &Client{
		apiKey:   cfg.APIKey,
		keywords: cfg.Keywords,
		pageSize: cfg.PageSize,
		baseURL:  newsAPIBaseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		now:      time.Now,
	}
}

type everythingResponse struct {
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	Articles []article `json:"articles"`
}

type article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// Fetch returns the newest matching headlines, deduplicated by URL.
func (c *Client) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	if err := config.Require("NEWSAPI_KEY", c.apiKey); err != nil {
		return nil, retry.Permanent(err)
	}

	params := url.Values{}
	params.Set("q", strings.Join(c.keywords, " OR "))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var payload everythingResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: payload.Message}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(statusErr)
		}
		return nil, statusErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("parsing newsapi response: %w", decodeErr)
	}

	return c.toItems(payload.Articles), nil
}

// toItems converts raw articles, dropping those without a URL and repeats
// of an earlier URL.
func (c *Client) toItems(articles []article) []models.NewsItem {
	seen := make(map[string]bool, len(articles))
	items := make([]models.NewsItem, 0, len(articles))
	for _, a := range articles {
		if a.URL == "" || seen[a.URL] {
			continue
		}
		seen[a.URL] = true

		title := a.Title
		if title == "" {
			title = "Untitled"
		}
		source := a.Source.Name
		if source == "" {
			source = "Unknown"
		}
		text := a.Description
		if text == "" {
			text = a.Content
		}

		items = append(items, models.NewsItem{
			ID:          a.URL,
			Title:       title,
			Summary:     Summarize(text),
			PublishedAt: c.parsePublished(a.PublishedAt),
			Source:      source,
			URL:         a.URL,
		})
	}
	return items
}

// parsePublished reads an ISO-8601 timestamp, defaulting to now.
func (c *Client) parsePublished(s string) time.Time {
	if s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	return c.now().UTC()
}

// Summarize trims text and bounds it to MaxSummaryLength characters,
// cutting one character short, dropping trailing space and appending an
// ellipsis when it is too long.
func Summarize(text string) string {
	summary := strings.TrimSpace(text)
	if utf8.RuneCountInString(summary) <= MaxSummaryLength {
		return summary
	}
	runes := []rune(summary)
	return strings.TrimRightFunc(string(runes[:MaxSummaryLength-1]), unicode.IsSpace) + normalize.Ellipsis
}
