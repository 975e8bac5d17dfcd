package feeds

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// fallbackDateLayouts are tried on the raw published string when gofeed
// could not parse it.
var fallbackDateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
}

// Entry is a feed item reduced to the fields an article needs.
type Entry struct {
	Link        string
	Title       string
	PublishedAt *time.Time
	// Snippet is the plain-text description or content, untruncated.
	Snippet    string
	Categories []string
}

// parseItem converts a gofeed item. ok is false when the item has no link
// (nor guid) or no title.
func parseItem(item *gofeed.Item) (entry Entry, ok bool) {
	if item == nil {
		return Entry{}, false
	}

	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return Entry{}, false
	}

	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}

	return Entry{
		Link:        link,
		Title:       title,
		PublishedAt: publishedAt(item),
		Snippet:     htmlToText(raw),
		Categories:  item.Categories,
	}, true
}

// publishedAt prefers the feed's ISO-style published date, then its
// updated date, then a best-effort parse of the raw published string.
func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		return &t
	}
	if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		return &t
	}
	raw := strings.TrimSpace(item.Published)
	if raw == "" {
		return nil
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// htmlToText returns the visible text of an HTML fragment with whitespace
// collapsed. Plain text passes through unchanged apart from whitespace.
func htmlToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return collapseWhitespace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseWhitespace(s)
	}
	doc.Find("script, style").Remove()
	return collapseWhitespace(doc.Text())
}

// firstTags returns up to limit non-blank categories in feed order.
func firstTags(categories []string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}
	tags := make([]string, 0, min(len(categories), limit))
	for _, c := range categories {
		if len(tags) == limit {
			break
		}
		if c = strings.TrimSpace(c); c != "" {
			tags = append(tags, c)
		}
	}
	return tags
}
