package storage

import (
	"context"
	"testing"
	"time"

	"github.com/econbrief/econbrief/internal/models"
)

func TestNewsItems_UpsertAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	items := []models.NewsItem{
		{ID: "https://n.com/1", Title: "Old", Summary: "s", PublishedAt: older, Source: "Wire", URL: "https://n.com/1"},
		{ID: "https://n.com/2", Title: "New", Summary: "s", PublishedAt: newer, Source: "Wire", URL: "https://n.com/2"},
	}
	if err := store.UpsertNewsItems(ctx, items, newer); err != nil {
		t.Fatalf("UpsertNewsItems error: %v", err)
	}

	// Re-upserting updates in place.
	items[0].Title = "Old (updated)"
	if err := store.UpsertNewsItems(ctx, items[:1], newer); err != nil {
		t.Fatalf("second UpsertNewsItems error: %v", err)
	}

	got, err := store.ListNewsItems(ctx, 50)
	if err != nil {
		t.Fatalf("ListNewsItems error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if got[0].Title != "New" || got[1].Title != "Old (updated)" {
		t.Errorf("items = %q, %q", got[0].Title, got[1].Title)
	}
	if !got[0].PublishedAt.Equal(newer) {
		t.Errorf("PublishedAt = %v, want %v", got[0].PublishedAt, newer)
	}

	limited, err := store.ListNewsItems(ctx, 1)
	if err != nil {
		t.Fatalf("ListNewsItems error: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("got %d items, want 1", len(limited))
	}
}

func TestNewsItems_EmptyUpsertIsNoop(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertNewsItems(context.Background(), nil, time.Now()); err != nil {
		t.Fatalf("UpsertNewsItems(nil) error: %v", err)
	}
}
