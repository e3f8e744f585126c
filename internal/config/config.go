package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"LearningCurator/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "LEARNING_CURATOR_CONFIG"
	logLevelEnv       = "LOG_LEVEL"
	httpAddrEnv       = "HTTP_ADDR"
	cronSecretEnv     = "CRON_SECRET"
	databaseDSNEnv    = "DATABASE_DSN"
	redisAddrEnv      = "REDIS_ADDR"
	judgeAPIKeyEnv    = "JUDGE_API_KEY"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	judgeModelEnv     = "JUDGE_MODEL"
	githubTokenEnv    = "GITHUB_TOKEN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Judge providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Store drivers.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Lease drivers.
const (
	LeaseLocal = "local"
	LeaseRedis = "redis"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Server        ServerConfig       `yaml:"server"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Topics        TopicsConfig       `yaml:"topics"`
	Sources       SourcesConfig      `yaml:"sources"`
	Judge         JudgeConfig        `yaml:"judge"`
	Store         StoreConfig        `yaml:"store"`
	Lease         LeaseConfig        `yaml:"lease"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig describes the trigger HTTP server.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	CronSecret string `yaml:"cronSecret"`
}

// SchedulerConfig defines when the pipeline should run in-process.
type SchedulerConfig struct {
	Enabled        bool           `yaml:"enabled"`
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// TopicsConfig points at the topic roster. A non-empty Path wins over Items.
type TopicsConfig struct {
	Path  string         `yaml:"path"`
	Items []domain.Topic `yaml:"items"`
}

// SourceConfig is the immutable per-source configuration.
type SourceConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	Window   time.Duration `yaml:"window"`
	Limit    int           `yaml:"limit"`
	// Credential is a private token. When RequireCredential is set and the
	// credential is empty the source is disabled at startup.
	Credential        string `yaml:"credential"`
	RequireCredential bool   `yaml:"requireCredential"`
	// Board is the default discussion board for board-style sources.
	Board     string `yaml:"board"`
	UserAgent string `yaml:"userAgent"`
}

// SourcesConfig groups the content sources in registration order.
type SourcesConfig struct {
	HackerNews SourceConfig `yaml:"hackernews"`
	GitHub     SourceConfig `yaml:"github"`
	DevTo      SourceConfig `yaml:"devto"`
	Reddit     SourceConfig `yaml:"reddit"`
	Lobsters   SourceConfig `yaml:"lobsters"`
}

// JudgeConfig defines how to contact the ranking judge.
type JudgeConfig struct {
	Provider    string        `yaml:"provider"`
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	MinInterval time.Duration `yaml:"minInterval"`
	MaxInput    int           `yaml:"maxInput"`
	MaxTokens   int           `yaml:"maxTokens"`
}

// Configured reports whether a judge credential is present.
func (j JudgeConfig) Configured() bool {
	return j.APIKey != ""
}

// StoreConfig selects where the status document lives.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	Path       string `yaml:"path"`
	DSN        string `yaml:"dsn"`
	DocumentID string `yaml:"documentId"`
	Table      string `yaml:"table"`
}

// LeaseConfig selects how runs are serialized.
type LeaseConfig struct {
	Driver    string        `yaml:"driver"`
	RedisAddr string        `yaml:"redisAddr"`
	Key       string        `yaml:"key"`
	TTL       time.Duration `yaml:"ttl"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	// BaseURL overrides the Bot API host.
	BaseURL string `yaml:"baseUrl"`
}

// Enabled reports whether both token and chat are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if cfg.Topics.Path == "" && len(cfg.Topics.Items) == 0 {
		cfg.Topics.Items = defaultConfig().Topics.Items
	}

	return cfg
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.Judge.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("judge.provider %q is not supported", c.Judge.Provider))
	}

	switch c.Store.Driver {
	case StoreFile:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the file store"))
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}

	switch c.Lease.Driver {
	case LeaseLocal:
	case LeaseRedis:
		if c.Lease.RedisAddr == "" {
			errs = append(errs, errors.New("lease.redisAddr is required for the redis lease"))
		}
	default:
		errs = append(errs, fmt.Errorf("lease.driver %q is not supported", c.Lease.Driver))
	}

	if c.Scheduler.Enabled && c.Scheduler.CronExpression == "" {
		errs = append(errs, errors.New("scheduler.cronExpression is required when the scheduler is enabled"))
	}

	return errors.Join(errs...)
}

// ValidateServer adds the checks needed only when the trigger server runs.
func (c Config) ValidateServer() error {
	if c.Server.CronSecret == "" {
		return errors.New("server.cronSecret (or CRON_SECRET) is required to serve the scheduled trigger")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(cronSecretEnv); v != "" {
		c.Server.CronSecret = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Store.DSN = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Lease.RedisAddr = v
	}

	switch {
	case os.Getenv(judgeAPIKeyEnv) != "":
		c.Judge.APIKey = os.Getenv(judgeAPIKeyEnv)
	case c.Judge.Provider == ProviderAnthropic && os.Getenv(anthropicKeyEnv) != "":
		c.Judge.APIKey = os.Getenv(anthropicKeyEnv)
	case c.Judge.Provider == ProviderOpenAI && os.Getenv(openAIAPIKeyEnv) != "":
		c.Judge.APIKey = os.Getenv(openAIAPIKeyEnv)
	}

	if v := os.Getenv(judgeModelEnv); v != "" {
		c.Judge.Model = v
	}

	if v := os.Getenv(githubTokenEnv); v != "" {
		c.Sources.GitHub.Credential = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
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

func defaultSource(endpoint string) SourceConfig {
	return SourceConfig{
		Enabled:   true,
		Endpoint:  endpoint,
		Timeout:   10 * time.Second,
		Window:    7 * 24 * time.Hour,
		Limit:     10,
		UserAgent: "LearningCurator/1.0",
	}
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)

	github := defaultSource("https://api.github.com/")
	github.RequireCredential = true

	reddit := defaultSource("https://www.reddit.com")
	reddit.Board = "programming"

	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Server:    ServerConfig{Addr: ":8080"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Topics: TopicsConfig{
			Items: []domain.Topic{
				{Name: "Rust", Keywords: []string{"rust", "rustlang"}},
				{Name: "Go", Keywords: []string{"golang", "go"}},
				{Name: "TypeScript", Keywords: []string{"typescript"}},
				{Name: "Kubernetes", Keywords: []string{"kubernetes", "k8s"}},
				{Name: "WebAssembly", Keywords: []string{"webassembly", "wasm"}},
			},
		},
		Sources: SourcesConfig{
			HackerNews: defaultSource("https://hn.algolia.com/api/v1/search_by_date"),
			GitHub:     github,
			DevTo:      defaultSource("https://dev.to/api/articles"),
			Reddit:     reddit,
			Lobsters:   defaultSource("https://lobste.rs"),
		},
		Judge: JudgeConfig{
			Provider:    ProviderOpenAI,
			Timeout:     30 * time.Second,
			Retries:     1,
			MinInterval: 2 * time.Second,
			MaxInput:    20,
			MaxTokens:   1024,
		},
		Store: StoreConfig{
			Driver:     StoreFile,
			Path:       "data/status.json",
			DocumentID: "current",
			Table:      "status_documents",
		},
		Lease: LeaseConfig{
			Driver: LeaseLocal,
			Key:    "learning-curator:run",
			TTL:    15 * time.Minute,
		},
	}
}
