package news

import (
	"context"
	"log/slog"
	"time"

	"github.com/econbrief/econbrief/internal/models"
	"github.com/econbrief/econbrief/internal/retry"
)

// CacheLimit is how many cached headlines are served as a fallback.
const CacheLimit = 50

// Fetcher retrieves fresh headlines.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.NewsItem, error)
}

// Store caches headlines between fetches.
type Store interface {
	UpsertNewsItems(ctx context.Context, items []models.NewsItem, fetchedAt time.Time) error
	ListNewsItems(ctx context.Context, limit int) ([]models.NewsItem, error)
}

// Response is the body served for a news request.
type Response struct {
	Items     []models.NewsItem `json:"items"`
	FetchedAt time.Time         `json:"fetched_at"`
	// Cached is set when fresh headlines were unavailable.
	Cached bool `json:"cached"`
}

// Service refreshes the headline cache on every request and falls back to
// it when NewsAPI cannot be reached.
type Service struct {
	fetcher Fetcher
	store   Store
	policy  retry.Policy
	now     func() time.Time
}

// NewService creates a Service.
func NewService(fetcher Fetcher, store Store, policy retry.Policy) *Service {
	return &Service{fetcher: fetcher, store: store, policy: policy, now: time.Now}
}

// Latest fetches fresh headlines and caches them. If the fetch fails, the
// newest cached headlines are returned instead; the fetch error is
// returned only when the cache is empty too.
func (s *Service) Latest(ctx context.Context) (*Response, error) {
	items, err := s.Refresh(ctx)
	if err == nil {
		return &Response{Items: items, FetchedAt: s.now().UTC()}, nil
	}

	cached, cacheErr := s.store.ListNewsItems(ctx, CacheLimit)
	if cacheErr != nil {
		slog.Error("failed to read news cache", "error", cacheErr)
		return nil, err
	}
	if len(cached) == 0 {
		return nil, err
	}

	slog.Warn("serving cached news", "error", err, "items", len(cached))
	return &Response{Items: cached, FetchedAt: s.now().UTC(), Cached: true}, nil
}

// Refresh fetches headlines and upserts them into the cache.
func (s *Service) Refresh(ctx context.Context) ([]models.NewsItem, error) {
	items, err := retry.Do(ctx, s.policy, s.fetcher.Fetch)
	if err != nil {
		return nil, err
	}

	fetchedAt := s.now().UTC()
	if err := s.store.UpsertNewsItems(ctx, items, fetchedAt); err != nil {
		return nil, err
	}
	slog.Info("news refreshed", "items", len(items))
	return items, nil
}
