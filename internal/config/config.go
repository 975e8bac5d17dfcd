package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration. It is built once at start-up
// and passed by pointer to every component that needs it.
type Config struct {
	AI      AIConfig      `toml:"ai"`
	Speech  SpeechConfig  `toml:"speech"`
	Storage StorageConfig `toml:"storage"`
	Mail    MailConfig    `toml:"mail"`
	Server  ServerConfig  `toml:"server"`
	Feeds   FeedsConfig   `toml:"feeds"`
	Retry   RetryConfig   `toml:"retry"`
	News    NewsConfig    `toml:"news"`
	Log     LogConfig     `toml:"log"`
}

// AIConfig holds chat-completion provider settings.
type AIConfig struct {
	Provider            string  `toml:"provider"`
	APIKey              string  `toml:"api_key"`
	Model               string  `toml:"model"`
	Language            string  `toml:"language"`
	AnalysisTemperature float64 `toml:"analysis_temperature"`
	ScriptTemperature   float64 `toml:"script_temperature"`
}

// SpeechConfig holds text-to-speech settings. Speech always goes through
// OpenAI, so APIKey falls back to the OpenAI chat key.
type SpeechConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
	Voice  string `toml:"voice"`
}

// StorageConfig selects and configures the audio sink.
type StorageConfig struct {
	Mode            string `toml:"mode"` // "local" | "s3"
	LocalDir        string `toml:"local_dir"`
	LocalPublicPath string `toml:"local_public_path"`
	PublicBaseURL   string `toml:"public_base_url"`

	S3Endpoint        string `toml:"s3_endpoint"`
	S3Region          string `toml:"s3_region"`
	S3Bucket          string `toml:"s3_bucket"`
	S3AccessKeyID     string `toml:"s3_access_key_id"`
	S3SecretAccessKey string `toml:"s3_secret_access_key"`
}

// MailConfig holds SendGrid settings and the digest recipient.
type MailConfig struct {
	SendGridAPIKey string `toml:"sendgrid_api_key"`
	From           string `toml:"from"`
	To             string `toml:"to"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// FeedsConfig holds RSS ingestion settings.
type FeedsConfig struct {
	ExcerptLength          int  `toml:"excerpt_length"`
	MaxTags                int  `toml:"max_tags"`
	ExtractMissingExcerpts bool `toml:"extract_missing_excerpts"`
}

// RetryConfig configures the envelope around outbound calls.
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
}

// BaseDelay returns the configured delay as a duration.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// NewsConfig configures the NewsAPI-backed AI news feed.
type NewsConfig struct {
	APIKey   string   `toml:"api_key"`
	Keywords []string `toml:"keywords"`
	PageSize int      `toml:"page_size"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" | "json"
}

const (
	ModeLocal = "local"
	ModeS3    = "s3"
)

// defaultModels maps each chat provider to the model used when none is set.
var defaultModels = map[string]string{
	"openai":    "gpt-4.1-mini",
	"anthropic": "claude-haiku-4-5",
}

const defaultConfigContent = `[ai]
provider = "openai"               # "openai" or "anthropic"
api_key = ""                      # Or set OPENAI_API_KEY / AI_API_KEY
model = "gpt-4.1-mini"
language = "Japanese"             # Language of generated scripts

[speech]
model = "gpt-4o-mini-tts"
voice = "alloy"

[storage]
mode = "local"                    # "local" or "s3"
local_dir = "public/uploads"
local_public_path = "/uploads"
public_base_url = ""

[mail]
from = ""
to = ""

[server]
host = "localhost"
port = 8080

[feeds]
excerpt_length = 400
max_tags = 10
extract_missing_excerpts = false

[retry]
max_attempts = 2
base_delay_ms = 500

[log]
level = "info"
format = "text"
`

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg, md)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	slog.Info("loaded env file", "path", path)
	return nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file,
// so that e.g. "port = 0" is an error rather than silently defaulted.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	if md.IsDefined("retry", "max_attempts") && cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("invalid retry.max_attempts %d: must be >= 1", cfg.Retry.MaxAttempts)
	}
	if md.IsDefined("feeds", "excerpt_length") && cfg.Feeds.ExcerptLength < 1 {
		return fmt.Errorf("invalid feeds.excerpt_length %d: must be >= 1", cfg.Feeds.ExcerptLength)
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields.
func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModels[cfg.AI.Provider]
	}
	if cfg.AI.Language == "" {
		cfg.AI.Language = "Japanese"
	}
	// Temperatures may legitimately be 0, so only default when absent.
	if !md.IsDefined("ai", "analysis_temperature") {
		cfg.AI.AnalysisTemperature = 0.2
	}
	if !md.IsDefined("ai", "script_temperature") {
		cfg.AI.ScriptTemperature = 0.4
	}

	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "gpt-4o-mini-tts"
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "alloy"
	}

	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = ModeS3
	}
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = "public/uploads"
	}
	if cfg.Storage.LocalPublicPath == "" {
		cfg.Storage.LocalPublicPath = "/uploads"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Feeds.ExcerptLength == 0 {
		cfg.Feeds.ExcerptLength = 400
	}
	if cfg.Feeds.MaxTags == 0 {
		cfg.Feeds.MaxTags = 10
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 2
	}
	if !md.IsDefined("retry", "base_delay_ms") {
		cfg.Retry.BaseDelayMS = 500
	}

	if len(cfg.News.Keywords) == 0 {
		cfg.News.Keywords = []string{
			"AI", "人工知能", "生成AI", "ChatGPT", "Claude", "Gemini",
			"Anthropic", "OpenAI", "Stability AI",
		}
	}
	if cfg.News.PageSize == 0 {
		cfg.News.PageSize = 50
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
//
// Priority for ai.api_key:
//  1. AI_API_KEY (generic, highest)
//  2. ANTHROPIC_API_KEY (when provider is "anthropic")
//  3. OPENAI_API_KEY (when provider is "openai")
//
// ai.model follows the provider the same way: OPENAI_MODEL applies only to
// "openai", ANTHROPIC_MODEL only to "anthropic".
func applyEnvOverrides(cfg *Config) {
	switch cfg.AI.Provider {
	case "anthropic":
		setFromEnv(&cfg.AI.APIKey, "ANTHROPIC_API_KEY")
		setFromEnv(&cfg.AI.Model, "ANTHROPIC_MODEL")
	case "openai":
		setFromEnv(&cfg.AI.APIKey, "OPENAI_API_KEY")
		setFromEnv(&cfg.AI.Model, "OPENAI_MODEL")
	}
	setFromEnv(&cfg.AI.APIKey, "AI_API_KEY")

	setFromEnv(&cfg.Speech.APIKey, "OPENAI_API_KEY")
	setFromEnv(&cfg.Speech.Voice, "OPENAI_TTS_VOICE")
	if cfg.Speech.APIKey == "" && cfg.AI.Provider == "openai" {
		cfg.Speech.APIKey = cfg.AI.APIKey
	}

	setFromEnv(&cfg.Storage.Mode, "STORAGE_MODE")
	setFromEnv(&cfg.Storage.LocalDir, "LOCAL_STORAGE_DIR")
	setFromEnv(&cfg.Storage.LocalPublicPath, "LOCAL_STORAGE_PUBLIC_PATH")
	setFromEnv(&cfg.Storage.PublicBaseURL, "PUBLIC_BASE_URL")
	setFromEnv(&cfg.Storage.S3Endpoint, "S3_ENDPOINT")
	setFromEnv(&cfg.Storage.S3Region, "S3_REGION")
	setFromEnv(&cfg.Storage.S3Bucket, "S3_BUCKET")
	setFromEnv(&cfg.Storage.S3AccessKeyID, "S3_ACCESS_KEY_ID")
	setFromEnv(&cfg.Storage.S3SecretAccessKey, "S3_SECRET_ACCESS_KEY")

	setFromEnv(&cfg.Mail.SendGridAPIKey, "SENDGRID_API_KEY")
	setFromEnv(&cfg.Mail.From, "MAIL_FROM")
	setFromEnv(&cfg.Mail.To, "MAIL_TO")

	setFromEnv(&cfg.News.APIKey, "NEWSAPI_KEY")
}

// setFromEnv overwrites *dst with the named variable when it is non-blank.
func setFromEnv(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	switch cfg.AI.Provider {
	case "anthropic", "openai":
		// valid
	default:
		return fmt.Errorf("invalid ai.provider %q: must be \"anthropic\" or \"openai\"", cfg.AI.Provider)
	}

	switch cfg.Storage.Mode {
	case ModeLocal, ModeS3:
		// valid
	default:
		return fmt.Errorf("invalid storage.mode %q: must be %q or %q", cfg.Storage.Mode, ModeLocal, ModeS3)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}
	if cfg.Retry.BaseDelayMS < 0 {
		return fmt.Errorf("invalid retry.base_delay_ms %d: must be >= 0", cfg.Retry.BaseDelayMS)
	}

	// Missing credentials are not fatal at start-up: the affected
	// collaborator reports a MissingError when it is first used.
	if cfg.AI.APIKey == "" {
		slog.Warn("ai.api_key is empty: set it in the config file or via OPENAI_API_KEY / AI_API_KEY")
	}
	if cfg.Mail.To == "" {
		slog.Warn("mail.to is empty: the daily digest endpoint will reject requests until MAIL_TO is set")
	}
	return nil
}
