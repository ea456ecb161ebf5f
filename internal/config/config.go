package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "MARKET_SCANNER_CONFIG"
	databaseDriverEnv   = "DATABASE_DRIVER"
	databaseDSNEnv      = "DATABASE_DSN"
	logLevelEnv         = "LOG_LEVEL"
	logFormatEnv        = "LOG_FORMAT"
	searchProviderEnv   = "SEARCH_PROVIDER"
	serperAPIKeyEnv     = "SERPER_API_KEY"
	aiProviderEnv       = "AI_PROVIDER"
	openAIAPIKeyEnv     = "OPENAI_API_KEY"
	anthropicAPIKeyEnv  = "ANTHROPIC_API_KEY"
	geminiAPIKeyEnv     = "GEMINI_API_KEY"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	smtpHostEnv         = "SMTP_HOST"
	smtpUsernameEnv     = "SMTP_USERNAME"
	smtpPasswordEnv     = "SMTP_PASSWORD"
	defaultDotEnvPath   = ".env"
	defaultSQLiteDSN    = "file:marketscanner.db?_pragma=busy_timeout(5000)"
	defaultOpenAIURL    = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel  = "gpt-4o-mini"
	defaultClaudeModel  = "claude-3-5-haiku-latest"
	defaultGeminiModel  = "gemini-2.0-flash"
	defaultSearchEngine = "duckduckgo"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Search        SearchConfig       `yaml:"search"`
	AI            AIConfig           `yaml:"ai"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
}

// LoggingConfig selects level and handler format (text|json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the SQL connection; Driver is sqlite or postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SearchConfig picks the default search provider and its endpoints.
type SearchConfig struct {
	Provider      string       `yaml:"provider"`
	FreshnessDays int          `yaml:"freshnessDays"`
	NumResults    int          `yaml:"numResults"`
	RatePerSecond float64      `yaml:"ratePerSecond"`
	DuckDuckGoURL string       `yaml:"duckduckgoUrl"`
	GoogleNewsURL string       `yaml:"googleNewsUrl"`
	Serper        SerperConfig `yaml:"serper"`
}

// SerperConfig holds the JSON search API credentials.
type SerperConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// AIConfig lists the completion providers; Provider is the default one.
type AIConfig struct {
	Provider  string         `yaml:"provider"`
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Gemini    ProviderConfig `yaml:"gemini"`
}

// ProviderConfig defines how to contact one LLM API.
type ProviderConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// SchedulerConfig tunes the task loop and the periodic tasks.
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	Backoff      time.Duration `yaml:"backoff"`
	Concurrency  int           `yaml:"concurrency"`
	RerunSpacing time.Duration `yaml:"rerunSpacing"`
	LogRetention time.Duration `yaml:"logRetention"`
	CleanupEvery time.Duration `yaml:"cleanupEvery"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	SMTP     SMTPConfig     `yaml:"smtp"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// SMTPConfig is used for report-completion emails.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// PipelineConfig bounds the run stages.
type PipelineConfig struct {
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	MaxContentChars  int           `yaml:"maxContentChars"`
	MaxQueries       int           `yaml:"maxQueries"`
	SettingsCacheTTL time.Duration `yaml:"settingsCacheTTL"`
	HistoryRuns      int           `yaml:"historyRuns"`
}

// Load reads .env (when present), the YAML file named by MARKET_SCANNER_CONFIG
// over the defaults, then environment overrides.
func Load() (Config, error) {
	if err := godotenv.Load(defaultDotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", defaultDotEnvPath, err)
	}

	cfg := Default()
	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.merge(raw); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// merge decodes YAML on top of the current values; keys absent from raw keep
// their defaults.
func (c *Config) merge(raw []byte) error {
	return yaml.Unmarshal(raw, c)
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{databaseDriverEnv, &c.Database.Driver},
		{databaseDSNEnv, &c.Database.DSN},
		{logLevelEnv, &c.Logging.Level},
		{logFormatEnv, &c.Logging.Format},
		{searchProviderEnv, &c.Search.Provider},
		{serperAPIKeyEnv, &c.Search.Serper.APIKey},
		{aiProviderEnv, &c.AI.Provider},
		{openAIAPIKeyEnv, &c.AI.OpenAI.APIKey},
		{anthropicAPIKeyEnv, &c.AI.Anthropic.APIKey},
		{geminiAPIKeyEnv, &c.AI.Gemini.APIKey},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
		{smtpHostEnv, &c.Notifications.SMTP.Host},
		{smtpUsernameEnv, &c.Notifications.SMTP.Username},
		{smtpPasswordEnv, &c.Notifications.SMTP.Password},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// Validate fails when a selected provider lacks credentials or a value is out of range.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want sqlite or postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is empty"))
	}

	switch c.Search.Provider {
	case "duckduckgo", "googlenews":
	case "serper":
		if c.Search.Serper.APIKey == "" {
			errs = append(errs, errors.New("search.serper.apiKey is required when search.provider is serper"))
		}
	default:
		errs = append(errs, fmt.Errorf("search.provider %q is not supported", c.Search.Provider))
	}

	if c.AI.Provider != "" {
		provider, ok := c.AI.Providers()[c.AI.Provider]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("ai.provider %q is not supported", c.AI.Provider))
		case provider.APIKey == "":
			errs = append(errs, fmt.Errorf("ai.%s.apiKey is required when ai.provider is %s", c.AI.Provider, c.AI.Provider))
		}
	}

	if c.Scheduler.Concurrency <= 0 {
		errs = append(errs, errors.New("scheduler.concurrency must be positive"))
	}
	if c.Scheduler.PollInterval <= 0 {
		errs = append(errs, errors.New("scheduler.pollInterval must be positive"))
	}
	if c.Pipeline.MaxQueries <= 0 {
		errs = append(errs, errors.New("pipeline.maxQueries must be positive"))
	}

	return errors.Join(errs...)
}

// Providers maps provider names to their settings.
func (a AIConfig) Providers() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"openai":    a.OpenAI,
		"anthropic": a.Anthropic,
		"gemini":    a.Gemini,
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: defaultSQLiteDSN},
		Search: SearchConfig{
			Provider:      defaultSearchEngine,
			FreshnessDays: 180,
			NumResults:    10,
			RatePerSecond: 1,
		},
		AI: AIConfig{
			OpenAI:    ProviderConfig{Endpoint: defaultOpenAIURL, Model: defaultOpenAIModel},
			Anthropic: ProviderConfig{Model: defaultClaudeModel},
			Gemini:    ProviderConfig{Model: defaultGeminiModel},
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
			Backoff:      60 * time.Second,
			Concurrency:  3,
			RerunSpacing: 7 * 24 * time.Hour,
			LogRetention: 30 * 24 * time.Hour,
			CleanupEvery: 24 * time.Hour,
		},
		Notifications: NotificationConfig{
			SMTP: SMTPConfig{Port: 587},
		},
		Pipeline: PipelineConfig{
			FetchTimeout:     20 * time.Second,
			MaxContentChars:  300000,
			MaxQueries:       8,
			SettingsCacheTTL: 60 * time.Second,
			HistoryRuns:      300,
		},
	}
}
