package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Stacks      string `yaml:"stacks"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// APIConfig points the gateway client at the remote wallet API.
type APIConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"API_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"API_TIMEOUT_SECONDS"`
}

// PusherConfig configures the realtime deposit notification channel.
type PusherConfig struct {
	Key     string `yaml:"key" envconfig:"PUSHER_KEY"`
	Cluster string `yaml:"cluster" envconfig:"PUSHER_CLUSTER"`
	// AuthPath is the API path used to authorize private channel subscriptions.
	AuthPath string `yaml:"auth_path" envconfig:"PUSHER_AUTH_PATH"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// LimitsConfig holds the abuse guard settings: a global fixed window per user
// and a tighter fixed window per (user, command) pair. Admin IDs bypass both.
type LimitsConfig struct {
	GlobalWindowMS       int     `yaml:"global_window_ms" envconfig:"LIMITS_GLOBAL_WINDOW_MS"`
	GlobalLimit          int     `yaml:"global_limit" envconfig:"LIMITS_GLOBAL_LIMIT"`
	CommandWindowMS      int     `yaml:"command_window_ms" envconfig:"LIMITS_COMMAND_WINDOW_MS"`
	CommandLimit         int     `yaml:"command_limit" envconfig:"LIMITS_COMMAND_LIMIT"`
	SweepIntervalMinutes int     `yaml:"sweep_interval_minutes" envconfig:"LIMITS_SWEEP_INTERVAL_MINUTES"`
	AdminIDs             []int64 `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
}

// SessionConfig selects the session store backend and input policy knobs.
type SessionConfig struct {
	// Backend is "memory" (default) or "postgres".
	Backend string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	// BankAccountMinLength is the minimum accepted bank account identifier length.
	BankAccountMinLength int `yaml:"bank_account_min_length" envconfig:"BANK_ACCOUNT_MIN_LENGTH"`
}

const (
	// SessionBackendMemory keeps sessions in process memory.
	SessionBackendMemory = "memory"
	// SessionBackendPostgres persists sessions through the database layer.
	SessionBackendPostgres = "postgres"
)

// Config aggregates the configuration of the bot.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Logging  LoggingConfig  `yaml:"logging"`
	API      APIConfig      `yaml:"api"`
	Pusher   PusherConfig   `yaml:"pusher"`
	Limits   LimitsConfig   `yaml:"limits"`
	Session  SessionConfig  `yaml:"session"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.API.TimeoutSeconds < 0 {
		return fmt.Errorf("api.timeout_seconds must be >= 0")
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 30
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Pusher.AuthPath == "" {
		cfg.Pusher.AuthPath = "/api/notifications/auth"
	}

	if err := normalizeLimits(&cfg.Limits); err != nil {
		return err
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	if backend == "" {
		backend = SessionBackendMemory
	}
	switch backend {
	case SessionBackendMemory, SessionBackendPostgres:
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, postgres", cfg.Session.Backend)
	}
	cfg.Session.Backend = backend
	if cfg.Session.BankAccountMinLength <= 0 {
		cfg.Session.BankAccountMinLength = 5
	}

	return nil
}

func normalizeLimits(l *LimitsConfig) error {
	if l.GlobalWindowMS < 0 || l.CommandWindowMS < 0 {
		return fmt.Errorf("limits windows must be >= 0")
	}
	if l.GlobalLimit < 0 || l.CommandLimit < 0 {
		return fmt.Errorf("limits must be >= 0")
	}
	if l.GlobalWindowMS == 0 {
		l.GlobalWindowMS = 60_000
	}
	if l.GlobalLimit == 0 {
		l.GlobalLimit = 20
	}
	if l.CommandWindowMS == 0 {
		l.CommandWindowMS = 30_000
	}
	if l.CommandLimit == 0 {
		l.CommandLimit = 5
	}
	if l.SweepIntervalMinutes <= 0 {
		l.SweepIntervalMinutes = 10
	}
	return nil
}
