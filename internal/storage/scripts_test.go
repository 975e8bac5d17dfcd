package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/econbrief/econbrief/internal/models"
)

func TestCreateScript_ArticleAndDigest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSource(t, store, "reuters", "Reuters")
	a := seedArticle(t, store, "reuters", "https://e.com/1", "A")

	article := &models.Script{ArticleID: a.ID, Kind: models.ScriptKindArticle, Text: "結論から言うと"}
	if err := store.CreateScript(ctx, article); err != nil {
		t.Fatalf("CreateScript(article) error: %v", err)
	}
	digest := &models.Script{Kind: models.ScriptKindDailyDigest, Text: "今日のまとめ"}
	if err := store.CreateScript(ctx, digest); err != nil {
		t.Fatalf("CreateScript(digest) error: %v", err)
	}

	got, err := store.GetScript(ctx, digest.ID)
	if err != nil {
		t.Fatalf("GetScript error: %v", err)
	}
	if got.ArticleID != "" || got.Kind != models.ScriptKindDailyDigest || got.Text != "今日のまとめ" {
		t.Errorf("GetScript(digest) = %+v", got)
	}

	got, err = store.GetScript(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetScript error: %v", err)
	}
	if got.ArticleID != a.ID || got.Kind != models.ScriptKindArticle {
		t.Errorf("GetScript(article) = %+v", got)
	}

	n, err := store.CountScripts(ctx, a.ID)
	if err != nil || n != 1 {
		t.Fatalf("CountScripts = %d, %v; want 1, nil", n, err)
	}
}

func TestCreateScript_ArticleKindNeedsArticle(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateScript(context.Background(), &models.Script{Kind: models.ScriptKindArticle, Text: "x"})
	if err == nil {
		t.Fatal("expected error for article script without article id")
	}
}

func TestGetScript_NotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetScript(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetScript error = %v, want ErrNotFound", err)
	}
}

func TestListScriptsForArticle_LatestAudio(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSource(t, store, "reuters", "Reuters")
	a := seedArticle(t, store, "reuters", "https://e.com/1", "A")

	older := &models.Script{ArticleID: a.ID, Kind: models.ScriptKindArticle, Text: "v1"}
	newer := &models.Script{ArticleID: a.ID, Kind: models.ScriptKindArticle, Text: "v2"}
	for _, sc := range []*models.Script{older, newer} {
		if err := store.CreateScript(ctx, sc); err != nil {
			t.Fatalf("CreateScript error: %v", err)
		}
	}

	var lastAudio *models.AudioFile
	for _, key := range []string{"audio/1.mp3", "audio/2.mp3"} {
		af := &models.AudioFile{ScriptID: newer.ID, StorageKey: key, PublicURL: "https://cdn/" + key}
		if err := store.CreateAudioFile(ctx, af); err != nil {
			t.Fatalf("CreateAudioFile error: %v", err)
		}
		lastAudio = af
	}

	scripts, err := store.ListScriptsForArticle(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListScriptsForArticle error: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("got %d scripts, want 2", len(scripts))
	}
	if scripts[0].ID != newer.ID || scripts[1].ID != older.ID {
		t.Errorf("scripts not newest-first: %s, %s", scripts[0].ID, scripts[1].ID)
	}
	if scripts[0].LatestAudio == nil || scripts[0].LatestAudio.ID != lastAudio.ID {
		t.Errorf("LatestAudio = %+v, want %q", scripts[0].LatestAudio, lastAudio.ID)
	}
	if scripts[1].LatestAudio != nil {
		t.Errorf("older script has audio %+v, want nil", scripts[1].LatestAudio)
	}

	files, err := store.ListAudioFiles(ctx, newer.ID)
	if err != nil {
		t.Fatalf("ListAudioFiles error: %v", err)
	}
	if len(files) != 2 || files[0].StorageKey != "audio/2.mp3" {
		t.Errorf("ListAudioFiles = %+v", files)
	}
}

func TestCreateAudioFile_RequiresScript(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateAudioFile(context.Background(), &models.AudioFile{
		ScriptID: "missing", StorageKey: "k", PublicURL: "u",
	})
	if err == nil {
		t.Fatal("expected foreign key error for missing script")
	}
}
