package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName     = "sitewatch"
	defaultAPIListen       = ":8080"
	defaultHealthPath      = "/healthz"
	defaultReadyPath       = "/readyz"
	defaultStoragePath     = "sitewatch.db"
	defaultStatsWindowHr   = 24
	defaultRecentChecks    = 50
	defaultNATSURL         = "nats://127.0.0.1:4222"
	defaultNATSSubject     = "sitewatch.results"
	defaultNATSStream      = "SITEWATCH_RESULTS"
	defaultNATSConsumer    = "sitewatch-ingest"
	defaultNATSGroup       = "sitewatch-workers"
	defaultNATSAckWaitSec  = 30
	defaultNATSNackDelayMS = 1000
	defaultNATSMaxDeliver  = -1
	defaultNATSMaxPending  = 1024
	defaultSMTPPort        = 587
	defaultNotifyTimeout   = 10
	defaultRetryInitialMS  = 500
	defaultRetryMaxMS      = 5000
	defaultRetryAttempts   = 3
)

// Config holds service runtime settings.
// Params: TOML sections decoded from one config file.
// Returns: validated runtime configuration.
type Config struct {
	Service   ServiceConfig   `toml:"service"`
	Log       LogConfig       `toml:"log"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	Ingest    IngestConfig    `toml:"ingest"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Notify    NotifyConfig    `toml:"notify"`
}

// ServiceConfig contains process-level settings.
// Params: service name and dashboard query defaults.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name              string `toml:"name"`
	StatsWindowHours  int    `toml:"stats_window_hours"`
	RecentChecksLimit int    `toml:"recent_checks_limit"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// StorageConfig selects the sqlite database location.
// Params: database file path (":memory:" for ephemeral runs).
// Returns: persistence options.
type StorageConfig struct {
	Path string `toml:"path"`
}

// APIConfig configures the inbound configuration/read API.
// Params: listen address, health endpoints, and bearer-token auth.
// Returns: HTTP API behavior.
type APIConfig struct {
	Listen     string `toml:"listen"`
	HealthPath string `toml:"health_path"`
	ReadyPath  string `toml:"ready_path"`
	JWTSecret  string `toml:"jwt_secret"`
}

// IngestConfig defines optional remote-worker result ingestion.
// Params: NATS queue-consumer settings.
// Returns: ingestion runtime options.
type IngestConfig struct {
	NATS NATSIngestConfig `toml:"nats"`
}

// NATSIngestConfig configures JetStream queue-consumer ingestion of check results.
// Params: connection, routing, and ack/redelivery policy.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"subject"`
	Stream        string   `toml:"stream"`
	ConsumerName  string   `toml:"consumer_name"`
	DeliverGroup  string   `toml:"deliver_group"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// SchedulerConfig tunes probe scheduling behavior.
// Params: stagger toggle for process start.
// Returns: scheduler options.
type SchedulerConfig struct {
	Stagger *bool `toml:"stagger"`
}

// StaggerEnabled reports whether first ticks are spread across the interval.
// Params: none.
// Returns: true unless stagger was explicitly disabled.
func (s SchedulerConfig) StaggerEnabled() bool {
	return s.Stagger == nil || *s.Stagger
}

// NotifyConfig defines outbound notification transports.
// Params: per-channel transport settings with retry policies.
// Returns: notification controls.
type NotifyConfig struct {
	Email    EmailNotifier    `toml:"email"`
	Slack    SlackNotifier    `toml:"slack"`
	Webhook  WebhookNotifier  `toml:"webhook"`
	Telegram TelegramNotifier `toml:"telegram"`
}

// NotifyRetry configures outbound delivery retries.
// Params: retry toggle, backoff, attempt limits, and logging.
// Returns: retry policy for one channel.
type NotifyRetry struct {
	Enabled        bool   `toml:"enabled"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	MaxAttempts    int    `toml:"max_attempts"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// EmailNotifier defines SMTP delivery settings.
// Params: server address, credentials, and sender/recipient addresses.
// Returns: email sender configuration.
type EmailNotifier struct {
	Enabled  bool        `toml:"enabled"`
	Host     string      `toml:"host"`
	Port     int         `toml:"port"`
	Username string      `toml:"username"`
	Password string      `toml:"password"`
	From     string      `toml:"from"`
	To       []string    `toml:"to"`
	Template string      `toml:"template"`
	Retry    NotifyRetry `toml:"retry"`
}

// SlackNotifier defines Slack webhook delivery settings.
// Params: incoming webhook URL and default channel.
// Returns: Slack sender configuration.
type SlackNotifier struct {
	Enabled    bool        `toml:"enabled"`
	WebhookURL string      `toml:"webhook_url"`
	Channel    string      `toml:"channel"`
	TimeoutSec int         `toml:"timeout_sec"`
	Template   string      `toml:"template"`
	Retry      NotifyRetry `toml:"retry"`
}

// WebhookNotifier defines generic outbound HTTP delivery settings.
// Params: fallback URL, timeout, and optional static headers.
// Returns: webhook sender configuration.
type WebhookNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	TimeoutSec int               `toml:"timeout_sec"`
	Headers    map[string]string `toml:"headers"`
	Retry      NotifyRetry       `toml:"retry"`
}

// TelegramNotifier defines Telegram Bot API delivery settings.
// Params: bot token, chat id, and optional API base URL.
// Returns: Telegram sender configuration.
type TelegramNotifier struct {
	Enabled  bool        `toml:"enabled"`
	BotToken string      `toml:"bot_token"`
	ChatID   string      `toml:"chat_id"`
	APIBase  string      `toml:"api_base"`
	Template string      `toml:"template"`
	Retry    NotifyRetry `toml:"retry"`
}

// Load reads and validates one TOML configuration file.
// Params: config file path.
// Returns: validated config or read/decode/validation error.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, errors.New("--config path is required")
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued settings in place.
// Params: mutable config snapshot.
// Returns: config with runtime defaults applied.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.StatsWindowHours == 0 {
		cfg.Service.StatsWindowHours = defaultStatsWindowHr
	}
	if cfg.Service.RecentChecksLimit == 0 {
		cfg.Service.RecentChecksLimit = defaultRecentChecks
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console = LogSinkConfig{Enabled: true, Level: "info", Format: "line"}
	}
	fillSinkDefaults(&cfg.Log.Console)
	fillSinkDefaults(&cfg.Log.File)

	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = defaultStoragePath
	}

	if strings.TrimSpace(cfg.API.Listen) == "" {
		cfg.API.Listen = defaultAPIListen
	}
	if strings.TrimSpace(cfg.API.HealthPath) == "" {
		cfg.API.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.API.ReadyPath) == "" {
		cfg.API.ReadyPath = defaultReadyPath
	}

	nats := &cfg.Ingest.NATS
	if len(nats.URL) == 0 {
		nats.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(nats.Subject) == "" {
		nats.Subject = defaultNATSSubject
	}
	if strings.TrimSpace(nats.Stream) == "" {
		nats.Stream = defaultNATSStream
	}
	if strings.TrimSpace(nats.ConsumerName) == "" {
		nats.ConsumerName = defaultNATSConsumer
	}
	if strings.TrimSpace(nats.DeliverGroup) == "" {
		nats.DeliverGroup = defaultNATSGroup
	}
	if nats.AckWaitSec == 0 {
		nats.AckWaitSec = defaultNATSAckWaitSec
	}
	if nats.NackDelayMS == 0 {
		nats.NackDelayMS = defaultNATSNackDelayMS
	}
	if nats.MaxDeliver == 0 {
		nats.MaxDeliver = defaultNATSMaxDeliver
	}
	if nats.MaxAckPending == 0 {
		nats.MaxAckPending = defaultNATSMaxPending
	}

	if cfg.Notify.Email.Port == 0 {
		cfg.Notify.Email.Port = defaultSMTPPort
	}
	if cfg.Notify.Slack.TimeoutSec == 0 {
		cfg.Notify.Slack.TimeoutSec = defaultNotifyTimeout
	}
	if cfg.Notify.Webhook.TimeoutSec == 0 {
		cfg.Notify.Webhook.TimeoutSec = defaultNotifyTimeout
	}
	fillRetryDefaults(&cfg.Notify.Email.Retry)
	fillRetryDefaults(&cfg.Notify.Slack.Retry)
	fillRetryDefaults(&cfg.Notify.Webhook.Retry)
	fillRetryDefaults(&cfg.Notify.Telegram.Retry)
}

// fillSinkDefaults normalizes one log sink section.
// Params: mutable sink settings.
// Returns: sink with level/format defaults applied.
func fillSinkDefaults(sink *LogSinkConfig) {
	if strings.TrimSpace(sink.Level) == "" {
		sink.Level = "info"
	}
	if strings.TrimSpace(sink.Format) == "" {
		sink.Format = "line"
	}
}

// fillRetryDefaults normalizes one retry policy section.
// Params: mutable retry settings.
// Returns: retry with backoff defaults applied.
func fillRetryDefaults(retry *NotifyRetry) {
	if strings.TrimSpace(retry.Backoff) == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialMS == 0 {
		retry.InitialMS = defaultRetryInitialMS
	}
	if retry.MaxMS == 0 {
		retry.MaxMS = defaultRetryMaxMS
	}
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = defaultRetryAttempts
	}
}

// validateConfig checks cross-field settings after defaults were applied.
// Params: config snapshot.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if cfg.Log.File.Enabled && strings.TrimSpace(cfg.Log.File.Path) == "" {
		return errors.New("log.file.path is required when file sink is enabled")
	}
	if strings.TrimSpace(cfg.API.JWTSecret) == "" {
		return errors.New("api.jwt_secret is required")
	}

	if cfg.Notify.Email.Enabled {
		if strings.TrimSpace(cfg.Notify.Email.Host) == "" {
			return errors.New("notify.email.host is required when email channel is enabled")
		}
		if strings.TrimSpace(cfg.Notify.Email.From) == "" {
			return errors.New("notify.email.from is required when email channel is enabled")
		}
		if len(cfg.Notify.Email.To) == 0 {
			return errors.New("notify.email.to is required when email channel is enabled")
		}
	}
	if cfg.Notify.Slack.Enabled {
		if err := requireHTTPURL("notify.slack.webhook_url", cfg.Notify.Slack.WebhookURL); err != nil {
			return err
		}
	}
	if cfg.Notify.Webhook.Enabled && strings.TrimSpace(cfg.Notify.Webhook.URL) != "" {
		if err := requireHTTPURL("notify.webhook.url", cfg.Notify.Webhook.URL); err != nil {
			return err
		}
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required when telegram channel is enabled")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required when telegram channel is enabled")
		}
	}
	return nil
}

// requireHTTPURL validates one absolute http(s) URL setting.
// Params: setting label and raw value.
// Returns: error when the value is empty or not an http(s) URL.
func requireHTTPURL(label, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%s is required", label)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", label, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", label)
	}
	return nil
}
