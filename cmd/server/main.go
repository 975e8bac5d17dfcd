package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/econbrief/econbrief/internal/ai"
	"github.com/econbrief/econbrief/internal/api"
	"github.com/econbrief/econbrief/internal/audit"
	"github.com/econbrief/econbrief/internal/blobstore"
	"github.com/econbrief/econbrief/internal/config"
	"github.com/econbrief/econbrief/internal/feeds"
	"github.com/econbrief/econbrief/internal/mail"
	"github.com/econbrief/econbrief/internal/news"
	"github.com/econbrief/econbrief/internal/pipeline"
	"github.com/econbrief/econbrief/internal/retry"
	"github.com/econbrief/econbrief/internal/storage"
)

// options are the command-line flags. Everything else lives in the TOML
// config and the environment.
type options struct {
	Config  string `long:"config" env:"ECONBRIEF_CONFIG" default:"config.toml" description:"Path to the TOML config file"`
	DataDir string `long:"data-dir" env:"ECONBRIEF_DATA_DIR" default:"./data" description:"Directory holding the SQLite database"`
	Sources string `long:"sources" env:"ECONBRIEF_SOURCES" default:"sources.yaml" description:"YAML catalogue of RSS sources"`
	EnvFile string `long:"env-file" default:".env" description:"Dotenv file loaded before the config"`
	Port    int    `long:"port" env:"PORT" description:"HTTP port, overrides server.port"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// Environment first so it can override the config file.
	if err := config.LoadEnvFile(opts.EnvFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	slog.SetDefault(newLogger(cfg.Log))

	// Database.
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	db, err := storage.OpenDatabase(filepath.Join(opts.DataDir, "econbrief.db"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	store := storage.NewStore(db)

	// Sources: the catalogue file wins, defaults seed an empty database.
	ctx := context.Background()
	sources, err := storage.LoadSourceFile(opts.Sources)
	if err != nil {
		return err
	}
	if sources != nil {
		if err := store.SyncSources(ctx, sources); err != nil {
			return fmt.Errorf("syncing sources: %w", err)
		}
		slog.Info("sources synced", "path", opts.Sources, "count", len(sources))
	} else if err := store.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seeding default sources: %w", err)
	}

	// External collaborators.
	chat, err := ai.NewProvider(ai.ProviderConfig{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
	})
	if err != nil {
		return fmt.Errorf("creating AI provider: %w", err)
	}
	slog.Info("AI provider configured", "provider", cfg.AI.Provider, "model", cfg.AI.Model)

	speech := ai.NewOpenAIProvider(cfg.Speech.APIKey, cfg.AI.Model)

	uploader, err := blobstore.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating audio storage: %w", err)
	}
	var uploads api.UploadServer
	if local, ok := uploader.(*blobstore.LocalStore); ok {
		uploads = local
	}

	auditLog := audit.NewLogger(store)
	policy := retry.Policy{MaxAttempts: cfg.Retry.MaxAttempts, BaseDelay: cfg.Retry.BaseDelay()}

	feedOpts := feeds.Options{
		ExcerptLength: cfg.Feeds.ExcerptLength,
		MaxTags:       cfg.Feeds.MaxTags,
		Retry:         policy,
	}
	if cfg.Feeds.ExtractMissingExcerpts {
		feedOpts.Extract = feeds.ExtractExcerpt
	}
	ingester := feeds.NewIngester(feeds.NewFetcher(), store, auditLog, feedOpts)

	newsService := news.NewService(news.NewClient(cfg.News), store, policy)
	if cfg.News.APIKey != "" {
		go func() {
			warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := newsService.Refresh(warmCtx); err != nil {
				slog.Warn("news warm-up failed", "error", err)
			}
		}()
	}

	gen := pipeline.New(cfg, pipeline.Deps{
		Store:    store,
		Chat:     chat,
		Speech:   speech,
		Uploader: uploader,
		Mailer:   mail.NewSendGridMailer(cfg.Mail),
		Errors:   auditLog,
	})

	router := api.NewRouter(api.Deps{
		Store:     store,
		Generator: gen,
		Ingester:  ingester,
		News:      newsService,
		Uploads:   uploads,
	})

	// Serve until a signal arrives.
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "storage", cfg.Storage.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutting down")
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	// Generation calls can take a while; give them time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// newLogger builds the process logger from the [log] section.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}
