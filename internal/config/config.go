package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "NEWSDIGEST_CONFIG"
	databasePathEnv   = "DATABASE_PATH"
	ollamaBaseURLEnv  = "OLLAMA_BASE_URL"
	ollamaModelEnv    = "OLLAMA_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv   = "TELEGRAM_CHAT_ID"
	genaiEnabledEnv   = "PERSONA_GENAI_NEWS_ENABLED"
	productEnabledEnv = "PERSONA_PRODUCT_IDEAS_ENABLED"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Logging       LoggingConfig      `yaml:"logging"`
	Feed          FeedConfig         `yaml:"feed"`
	Ollama        OllamaConfig       `yaml:"ollama"`
	Dedup         DedupConfig        `yaml:"dedup"`
	Evaluation    EvaluationConfig   `yaml:"evaluation"`
	Digest        DigestConfig       `yaml:"digest"`
	Notifications NotificationConfig `yaml:"notifications"`
	Lock          LockConfig         `yaml:"lock"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
}

// DatabaseConfig describes the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls level and the optional log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// FeedConfig describes ingestion from the upstream feed.
type FeedConfig struct {
	Source          string   `yaml:"source"`
	BaseURL         string   `yaml:"baseUrl"`
	IngestLimit     int      `yaml:"ingestLimit"`
	RecentLimit     int      `yaml:"recentLimit"`
	MinScore        int      `yaml:"minScore"`
	RequireKeywords bool     `yaml:"requireKeywords"`
	Keywords        []string `yaml:"keywords"`
	Blocklist       []string `yaml:"blocklist"`
	EnrichPages     bool     `yaml:"enrichPages"`
}

// OllamaConfig defines how to contact the local Ollama server.
type OllamaConfig struct {
	BaseURL     string  `yaml:"baseUrl"`
	ChatModel   string  `yaml:"chatModel"`
	EmbedModel  string  `yaml:"embedModel"`
	Temperature float64 `yaml:"temperature"`
}

// DedupConfig tunes the semantic duplicate detector.
type DedupConfig struct {
	SimThreshold float64 `yaml:"simThreshold"`
	IndexDir     string  `yaml:"indexDir"`
}

// EvaluationConfig selects personas and caps the evaluation budget.
// Persona toggles are tri-state: nil means enabled.
type EvaluationConfig struct {
	MaxItems            int   `yaml:"maxItems"`
	GenAINewsEnabled    *bool `yaml:"genaiNewsEnabled"`
	ProductIdeasEnabled *bool `yaml:"productIdeasEnabled"`
}

// Personas returns the enabled persona tags in a fixed order.
func (e EvaluationConfig) Personas() []string {
	var personas []string
	if e.GenAINewsEnabled == nil || *e.GenAINewsEnabled {
		personas = append(personas, "GENAI_NEWS")
	}
	if e.ProductIdeasEnabled == nil || *e.ProductIdeasEnabled {
		personas = append(personas, "PRODUCT_IDEAS")
	}
	return personas
}

// DigestConfig controls artifact output and the item time window.
type DigestConfig struct {
	OutDir      string `yaml:"outDir"`
	WindowHours int    `yaml:"windowHours"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BotToken  string `yaml:"botToken"`
	ChatID    string `yaml:"chatId"`
	ParseMode string `yaml:"parseMode"`
	MaxItems  int    `yaml:"maxItems"`
}

// LockConfig describes the cross-process run lock.
type LockConfig struct {
	Path           string `yaml:"path"`
	TimeoutMinutes int    `yaml:"timeoutMinutes"`
}

// Timeout resolves the configured staleness timeout.
func (l LockConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutMinutes) * time.Minute
}

// SchedulerConfig defines when recurring runs execute.
type SchedulerConfig struct {
	IntervalHours int            `yaml:"intervalHours"`
	Timezone      string         `yaml:"timezone"`
	location      *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Interval resolves the run interval.
func (s SchedulerConfig) Interval() time.Duration {
	hours := s.IntervalHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(ollamaBaseURLEnv); v != "" {
		c.Ollama.BaseURL = v
	}

	if v := os.Getenv(ollamaModelEnv); v != "" {
		c.Ollama.ChatModel = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(genaiEnabledEnv); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.Evaluation.GenAINewsEnabled = &parsed
		}
	}

	if v := os.Getenv(productEnabledEnv); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.Evaluation.ProductIdeasEnabled = &parsed
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if override.Feed.Source != "" {
		base.Feed.Source = override.Feed.Source
	}
	if override.Feed.BaseURL != "" {
		base.Feed.BaseURL = override.Feed.BaseURL
	}
	if override.Feed.IngestLimit > 0 {
		base.Feed.IngestLimit = override.Feed.IngestLimit
	}
	if override.Feed.RecentLimit > 0 {
		base.Feed.RecentLimit = override.Feed.RecentLimit
	}
	if override.Feed.MinScore > 0 {
		base.Feed.MinScore = override.Feed.MinScore
	}
	base.Feed.RequireKeywords = base.Feed.RequireKeywords || override.Feed.RequireKeywords
	base.Feed.EnrichPages = base.Feed.EnrichPages || override.Feed.EnrichPages
	if len(override.Feed.Keywords) > 0 {
		base.Feed.Keywords = normalizeTerms(override.Feed.Keywords)
	}
	if len(override.Feed.Blocklist) > 0 {
		base.Feed.Blocklist = normalizeTerms(override.Feed.Blocklist)
	}

	if override.Ollama.BaseURL != "" {
		base.Ollama.BaseURL = override.Ollama.BaseURL
	}
	if override.Ollama.ChatModel != "" {
		base.Ollama.ChatModel = override.Ollama.ChatModel
	}
	if override.Ollama.EmbedModel != "" {
		base.Ollama.EmbedModel = override.Ollama.EmbedModel
	}
	if override.Ollama.Temperature > 0 {
		base.Ollama.Temperature = override.Ollama.Temperature
	}

	if override.Dedup.SimThreshold > 0 {
		base.Dedup.SimThreshold = override.Dedup.SimThreshold
	}
	if override.Dedup.IndexDir != "" {
		base.Dedup.IndexDir = override.Dedup.IndexDir
	}

	if override.Evaluation.MaxItems > 0 {
		base.Evaluation.MaxItems = override.Evaluation.MaxItems
	}
	if override.Evaluation.GenAINewsEnabled != nil {
		base.Evaluation.GenAINewsEnabled = override.Evaluation.GenAINewsEnabled
	}
	if override.Evaluation.ProductIdeasEnabled != nil {
		base.Evaluation.ProductIdeasEnabled = override.Evaluation.ProductIdeasEnabled
	}

	if override.Digest.OutDir != "" {
		base.Digest.OutDir = override.Digest.OutDir
	}
	if override.Digest.WindowHours > 0 {
		base.Digest.WindowHours = override.Digest.WindowHours
	}

	base.Notifications.Telegram.Enabled = base.Notifications.Telegram.Enabled ||
		override.Notifications.Telegram.Enabled
	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.ParseMode != "" {
		base.Notifications.Telegram.ParseMode = override.Notifications.Telegram.ParseMode
	}
	if override.Notifications.Telegram.MaxItems > 0 {
		base.Notifications.Telegram.MaxItems = override.Notifications.Telegram.MaxItems
	}

	if override.Lock.Path != "" {
		base.Lock.Path = override.Lock.Path
	}
	if override.Lock.TimeoutMinutes > 0 {
		base.Lock.TimeoutMinutes = override.Lock.TimeoutMinutes
	}

	if override.Scheduler.IntervalHours > 0 {
		base.Scheduler.IntervalHours = override.Scheduler.IntervalHours
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	return base
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{Path: "data/digest.db"},
		Logging:  LoggingConfig{Level: "info", File: "logs/run.log"},
		Feed: FeedConfig{
			Source:      "hackernews",
			BaseURL:     "https://hacker-news.firebaseio.com/v0",
			IngestLimit: 30,
			RecentLimit: 100,
			MinScore:    30,
		},
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			ChatModel:   "llama3.1:8b",
			EmbedModel:  "nomic-embed-text",
			Temperature: 0.1,
		},
		Dedup: DedupConfig{
			SimThreshold: 0.86,
			IndexDir:     "data",
		},
		Evaluation: EvaluationConfig{MaxItems: 10},
		Digest: DigestConfig{OutDir: "out", WindowHours: 24},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{ParseMode: "MarkdownV2", MaxItems: 6},
		},
		Lock:      LockConfig{Path: "data/run.lock", TimeoutMinutes: 60},
		Scheduler: SchedulerConfig{IntervalHours: 24, Timezone: defaultTimezone, location: tz},
	}
}
