package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/singleflight"

	"github.com/econbrief/econbrief/internal/audit"
	"github.com/econbrief/econbrief/internal/models"
	"github.com/econbrief/econbrief/internal/normalize"
	"github.com/econbrief/econbrief/internal/retry"
)

// FeedSource retrieves a parsed feed.
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error)
}

// ArticleStore is the persistence the ingester needs.
type ArticleStore interface {
	ListEnabledSources(ctx context.Context) ([]models.Source, error)
	ArticleExists(ctx context.Context, urlNormalized string) (bool, error)
	CreateArticle(ctx context.Context, a *models.Article) (bool, error)
}

// ErrorLogger records external service failures.
type ErrorLogger interface {
	Log(ctx context.Context, e audit.Entry)
}

// ExcerptExtractor fetches readable text for an item that has none.
type ExcerptExtractor func(ctx context.Context, articleURL string) (string, error)

// Options tunes article creation.
type Options struct {
	ExcerptLength int
	MaxTags       int
	Retry         retry.Policy
	// Extract, when set, fills in excerpts for items without any text.
	Extract ExcerptExtractor
}

// SourceResult is the outcome for one source.
type SourceResult struct {
	SourceID     string `json:"sourceId"`
	RSSURL       string `json:"rssUrl"`
	CreatedCount int    `json:"createdCount"`
	SkippedCount int    `json:"skippedCount"`
	Error        string `json:"error,omitempty"`
}

// Result aggregates one ingestion run.
type Result struct {
	CreatedCount int            `json:"createdCount"`
	SkippedCount int            `json:"skippedCount"`
	Sources      []SourceResult `json:"sources"`
	// RunRequestID is the request id the run's audit rows were written
	// under: the id of the caller that started it.
	RunRequestID string `json:"-"`
}

// Ingester pulls every enabled source, one at a time, and stores new
// articles. Concurrent Run calls share a single in-flight run.
type Ingester struct {
	feeds  FeedSource
	store  ArticleStore
	errors ErrorLogger
	opts   Options
	now    func() time.Time
	group  singleflight.Group
}

// NewIngester creates an Ingester.
func NewIngester(feeds FeedSource, store ArticleStore, errors ErrorLogger, opts Options) *Ingester {
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = 400
	}
	if opts.MaxTags <= 0 {
		opts.MaxTags = 10
	}
	return &Ingester{
		feeds:  feeds,
		store:  store,
		errors: errors,
		opts:   opts,
		now:    time.Now,
	}
}

// Run ingests all enabled sources. A source whose feed cannot be fetched
// is logged and recorded in its SourceResult; the remaining sources are
// still processed. shared reports whether the run served more than one
// caller; audit rows of a shared run carry result.RunRequestID.
func (in *Ingester) Run(ctx context.Context, requestID string) (result *Result, shared bool, err error) {
	v, err, shared := in.group.Do("ingest", func() (any, error) {
		// The run outlives any single caller that gives up waiting.
		return in.run(context.WithoutCancel(ctx), requestID)
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*Result), shared, nil
}

func (in *Ingester) run(ctx context.Context, requestID string) (*Result, error) {
	sources, err := in.store.ListEnabledSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing enabled sources: %w", err)
	}

	result := &Result{Sources: make([]SourceResult, 0, len(sources)), RunRequestID: requestID}
	for _, src := range sources {
		sr := in.ingestSource(ctx, src, requestID)
		result.CreatedCount += sr.CreatedCount
		result.SkippedCount += sr.SkippedCount
		result.Sources = append(result.Sources, sr)
	}

	slog.Info("rss ingestion finished",
		"request_id", requestID,
		"sources", len(sources),
		"created", result.CreatedCount,
		"skipped", result.SkippedCount,
	)
	return result, nil
}

// ingestSource fetches one feed and stores its new items. Items processed
// before a storage failure keep their counts.
func (in *Ingester) ingestSource(ctx context.Context, src models.Source, requestID string) SourceResult {
	sr := SourceResult{SourceID: src.ID, RSSURL: src.RSSURL}

	feed, err := retry.Do(ctx, in.opts.Retry, func(ctx context.Context) (*gofeed.Feed, error) {
		return in.feeds.Fetch(ctx, src.RSSURL)
	})
	if err != nil {
		slog.Warn("failed to fetch feed", "source", src.ID, "url", src.RSSURL, "error", err)
		in.errors.Log(ctx, audit.Entry{
			Service:   models.ServiceRSS,
			Context:   models.ContextRSSIngest,
			Err:       err,
			RequestID: requestID,
			SourceID:  src.ID,
		})
		sr.Error = audit.Message(err)
		return sr
	}

	for _, item := range feed.Items {
		created, err := in.ingestItem(ctx, src, item)
		if err != nil {
			slog.Error("failed to store feed item", "source", src.ID, "error", err)
			sr.Error = audit.Message(err)
			return sr
		}
		if created {
			sr.CreatedCount++
		} else {
			sr.SkippedCount++
		}
	}

	slog.Info("ingested feed",
		"source", src.ID,
		"items", len(feed.Items),
		"created", sr.CreatedCount,
		"skipped", sr.SkippedCount,
	)
	return sr
}

// ingestItem stores item unless it is malformed or a duplicate.
func (in *Ingester) ingestItem(ctx context.Context, src models.Source, item *gofeed.Item) (bool, error) {
	entry, ok := parseItem(item)
	if !ok {
		return false, nil
	}

	normalized := normalize.URL(entry.Link)
	exists, err := in.store.ArticleExists(ctx, normalized)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	snippet := entry.Snippet
	if snippet == "" && in.opts.Extract != nil {
		text, err := in.opts.Extract(ctx, entry.Link)
		if err != nil {
			slog.Debug("excerpt extraction failed", "url", entry.Link, "error", err)
		}
		snippet = text
	}

	article := &models.Article{
		SourceID:      src.ID,
		URL:           entry.Link,
		URLNormalized: normalized,
		Title:         entry.Title,
		PublishedAt:   entry.PublishedAt,
		FetchedAt:     in.now(),
		Excerpt:       normalize.TruncateText(snippet, in.opts.ExcerptLength),
		Tags:          firstTags(entry.Categories, in.opts.MaxTags),
	}

	// A concurrent insert of the same URL reports created=false, which
	// counts as a skip like any other duplicate.
	return in.store.CreateArticle(ctx, article)
}
