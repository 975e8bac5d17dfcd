// Package normalize canonicalizes article URLs for deduplication and trims
// free text to bounded excerpts.
package normalize

import (
	"net/url"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// Ellipsis is appended to text cut by TruncateText.
const Ellipsis = "…"

// trackingParams are query parameters that never change the identity of
// an article.
var trackingParams = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"fbclid",
	"gclid",
}

// URL returns the canonical form of raw: fragment dropped, tracking
// parameters removed, remaining parameters sorted by key (pairs sharing a
// key keep their original order), host lowercased. Query pairs are kept
// byte for byte, so queries url.ParseQuery rejects (";" separators, bad
// escapes) still normalize.
//
// Input that does not parse as an absolute URL is returned trimmed and
// otherwise unchanged, so a malformed link never aborts ingestion.
func URL(raw string) string {
	trimmed := strings.TrimSpace(raw)

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}
	u.RawQuery = canonicalQuery(u.RawQuery)
	u.ForceQuery = false

	return u.String()
}

type queryPair struct {
	key string
	raw string
}

// canonicalQuery drops empty and tracking pairs from rawQuery and sorts
// the rest by decoded key.
func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	var pairs []queryPair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if slices.Contains(trackingParams, key) {
			continue
		}
		pairs = append(pairs, queryPair{key: key, raw: part})
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.raw
	}
	return strings.Join(parts, "&")
}

// TruncateText trims value and cuts it to at most maxLength characters,
// appending Ellipsis when something was removed. The result is therefore at
// most maxLength+1 characters long. Empty input yields the empty string.
func TruncateText(value string, maxLength int) string {
	if value == "" {
		return ""
	}
	trimmed := strings.TrimSpace(value)
	if utf8.RuneCountInString(trimmed) <= maxLength {
		return trimmed
	}

	runes := []rune(trimmed)
	return string(runes[:maxLength]) + Ellipsis
}
