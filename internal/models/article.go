package models

import (
	"encoding/json"
	"time"
)

// Source is an RSS feed configured by the operator.
type Source struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RSSURL    string    `json:"rssUrl"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// Article is a feed item ingested from a Source. URLNormalized is the
// deduplication key.
type Article struct {
	ID            string     `json:"id"`
	SourceID      string     `json:"sourceId"`
	SourceName    string     `json:"sourceName,omitempty"`
	URL           string     `json:"url"`
	URLNormalized string     `json:"urlNormalized"`
	Title         string     `json:"title"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	FetchedAt     time.Time  `json:"fetchedAt"`
	Excerpt       string     `json:"excerpt,omitempty"`
	Tags          []string   `json:"tags"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Analysis is a validated model-generated analysis of one article.
type Analysis struct {
	ID          string          `json:"id"`
	ArticleID   string          `json:"articleId"`
	Model       string          `json:"model"`
	ContentJSON json.RawMessage `json:"contentJson"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ScriptKind distinguishes per-article scripts from the daily digest.
type ScriptKind string

const (
	ScriptKindArticle     ScriptKind = "ARTICLE"
	ScriptKindDailyDigest ScriptKind = "DAILY_DIGEST"
)

// Script is spoken-register narration text. ArticleID is empty for digest
// scripts.
type Script struct {
	ID        string     `json:"id"`
	ArticleID string     `json:"articleId,omitempty"`
	Kind      ScriptKind `json:"kind"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
}

// AudioFile is synthesized speech for a Script, stored in object storage.
type AudioFile struct {
	ID         string    `json:"id"`
	ScriptID   string    `json:"scriptId"`
	StorageKey string    `json:"storageKey"`
	PublicURL  string    `json:"publicUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ScriptWithAudio pairs a script with its most recent audio file, if any.
type ScriptWithAudio struct {
	Script
	LatestAudio *AudioFile `json:"latestAudio,omitempty"`
}

// ArticleDetail is an article together with its derived artifacts.
type ArticleDetail struct {
	Article
	LatestAnalysis *Analysis          `json:"latestAnalysis,omitempty"`
	Scripts        []ScriptWithAudio `json:"scripts"`
}

// ArticleSummary is a list row: an article plus the id of its latest
// analysis.
type ArticleSummary struct {
	Article
	LatestAnalysisID string `json:"latestAnalysisId,omitempty"`
}

// AnalysisWithArticle is an analysis joined with its article and source
// name, as used by the daily digest.
type AnalysisWithArticle struct {
	Analysis
	ArticleTitle string `json:"articleTitle"`
	SourceName   string `json:"sourceName"`
}
