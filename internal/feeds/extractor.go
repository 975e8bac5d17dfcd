package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const userAgent = "Mozilla/5.0 (compatible; EconBrief/1.0)"

// browserHeaders sets request headers so article pages that check Accept or
// User-Agent don't reject the request.
func browserHeaders(r *http.Request) {
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Header.Set("User-Agent", userAgent)
}

// ExtractExcerpt fetches the article page and returns its readable text,
// with whitespace collapsed. It is used only for items whose feed entry
// carries no description or content.
func ExtractExcerpt(ctx context.Context, articleURL string) (string, error) {
	timeout := httpTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return "", ctx.Err()
	}

	article, err := readability.FromURL(articleURL, timeout, browserHeaders)
	if err != nil {
		return "", fmt.Errorf("readability extraction from %q: %w", articleURL, err)
	}

	text := article.Excerpt
	if strings.TrimSpace(text) == "" {
		text = article.TextContent
	}
	return collapseWhitespace(text), nil
}

// collapseWhitespace joins all whitespace-delimited fields with a single
// space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
