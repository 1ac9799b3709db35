package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration
type Config struct {
	// Platform selects the inbound decoder and outbound poster: slack or feishu
	Platform string

	Bot    BotConfig
	Slack  SlackConfig
	Feishu FeishuConfig
	HTTP   HTTPConfig
	Store  StoreConfig
	Queue  QueueConfig
	Worker WorkerConfig
	LLM    LLMConfig

	// Admission configuration
	EngagementWindow time.Duration

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	Log LogConfig
}

// BotConfig identifies the bot on the platform
type BotConfig struct {
	UserID string // id used in mentions
	AppID  string // id on bot-authored messages
	Name   string
}

// SlackConfig contains Slack configuration
type SlackConfig struct {
	BotToken      string
	AppToken      string // xapp- token for Socket Mode
	SigningSecret string
	Mode          string // events or socket
	BaseURL       string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	Mode      string // webhook or ws
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	Addr string
}

// StoreConfig contains session store configuration
type StoreConfig struct {
	Driver            string // sqlite, mysql or postgres
	DSN               string
	ConditionalWrites bool
}

// QueueConfig contains dispatch queue configuration
type QueueConfig struct {
	Driver        string // redis or memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DedupWindow   time.Duration
	Lease         time.Duration // redis only; in-flight items are redelivered after it expires
}

// WorkerConfig contains reply worker configuration
type WorkerConfig struct {
	Concurrency     int
	GenerateTimeout time.Duration
	PostTimeout     time.Duration
}

// LLMConfig contains reply generator configuration
type LLMConfig struct {
	Generator   string // openai or eino
	Provider    string // openai or claude, for the eino generator
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	PromptID    string
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Store DSN
	storeDriver := getEnv("STORE_DRIVER", "sqlite")
	storeDSN := os.Getenv("STORE_DSN")
	if storeDSN == "" && storeDriver == "sqlite" {
		homeDir, _ := os.UserHomeDir()
		storeDSN = filepath.Join(homeDir, ".slack-chat-bridge", "sessions.db")
	}

	// Load prompts from YAML
	promptsConfigPath := os.Getenv("PROMPTS_CONFIG_PATH")
	promptsConfig, err := LoadPromptsConfig(promptsConfigPath)
	if err != nil {
		promptsConfig = DefaultPromptsConfig()
	}

	return &Config{
		Platform: strings.ToLower(getEnv("PLATFORM", "slack")),
		Bot: BotConfig{
			UserID: os.Getenv("BOT_USER_ID"),
			AppID:  os.Getenv("BOT_APP_ID"),
			Name:   getEnv("BOT_NAME", "Tess"),
		},
		Slack: SlackConfig{
			BotToken:      os.Getenv("SLACK_BOT_TOKEN"),
			AppToken:      os.Getenv("SLACK_APP_TOKEN"),
			SigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
			Mode:          getEnv("SLACK_MODE", "events"),
			BaseURL:       getEnv("SLACK_BASE_URL", "https://slack.com/api"),
		},
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			Mode:      getEnv("FEISHU_MODE", "webhook"),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Store: StoreConfig{
			Driver:            storeDriver,
			DSN:               storeDSN,
			ConditionalWrites: getEnvBool("STORE_CONDITIONAL_WRITES", false),
		},
		Queue: QueueConfig{
			Driver:        getEnv("QUEUE_DRIVER", "memory"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			DedupWindow:   time.Duration(getEnvInt("QUEUE_DEDUP_WINDOW_SECONDS", 300)) * time.Second,
			Lease:         time.Duration(getEnvInt("QUEUE_LEASE_SECONDS", 600)) * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", 4),
			GenerateTimeout: time.Duration(getEnvInt("GENERATE_TIMEOUT_SECONDS", 60)) * time.Second,
			PostTimeout:     time.Duration(getEnvInt("POST_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		LLM: LLMConfig{
			Generator:   getEnv("GENERATOR", "openai"),
			Provider:    getEnv("LLM_PROVIDER", "openai"),
			APIKey:      os.Getenv("LLM_API_KEY"),
			BaseURL:     os.Getenv("LLM_BASE_URL"),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 100),
			Temperature: 0,
			PromptID:    os.Getenv("PROMPT_ID"),
		},
		EngagementWindow: time.Duration(getEnvInt("ENGAGEMENT_WINDOW_MINUTES", 30)) * time.Minute,
		Prompts:          promptsConfig,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Validate validates the configuration needed to ingest events
func (c *Config) Validate() error {
	if c.Bot.UserID == "" {
		return &ConfigError{Field: "BOT_USER_ID", Message: "required"}
	}
	switch c.Platform {
	case "slack":
		if c.Slack.Mode != "events" && c.Slack.Mode != "socket" {
			return &ConfigError{Field: "SLACK_MODE", Message: "must be events or socket"}
		}
		if c.Slack.Mode == "socket" && c.Slack.AppToken == "" {
			return &ConfigError{Field: "SLACK_APP_TOKEN", Message: "required for socket mode"}
		}
	case "feishu":
		if c.Feishu.Mode != "webhook" && c.Feishu.Mode != "ws" {
			return &ConfigError{Field: "FEISHU_MODE", Message: "must be webhook or ws"}
		}
		if c.Feishu.Mode == "ws" && (c.Feishu.AppID == "" || c.Feishu.AppSecret == "") {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required for ws mode"}
		}
	default:
		return &ConfigError{Field: "PLATFORM", Message: "must be slack or feishu"}
	}
	switch c.Store.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return &ConfigError{Field: "STORE_DRIVER", Message: "must be sqlite, mysql or postgres"}
	}
	if c.Store.DSN == "" {
		return &ConfigError{Field: "STORE_DSN", Message: "required"}
	}
	switch c.Queue.Driver {
	case "redis", "memory":
	default:
		return &ConfigError{Field: "QUEUE_DRIVER", Message: "must be redis or memory"}
	}
	if c.EngagementWindow <= 0 {
		return &ConfigError{Field: "ENGAGEMENT_WINDOW_MINUTES", Message: "must be positive"}
	}
	return nil
}

// ValidateWorker validates the configuration needed to generate and post replies
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Worker.Concurrency < 1 {
		return &ConfigError{Field: "WORKER_CONCURRENCY", Message: "must be at least 1"}
	}
	if c.LLM.APIKey == "" {
		return &ConfigError{Field: "LLM_API_KEY", Message: "required"}
	}
	switch c.LLM.Generator {
	case "openai":
	case "eino":
		if c.LLM.Provider != "openai" && c.LLM.Provider != "claude" {
			return &ConfigError{Field: "LLM_PROVIDER", Message: "must be openai or claude"}
		}
	default:
		return &ConfigError{Field: "GENERATOR", Message: "must be openai or eino"}
	}
	return c.ValidatePoster()
}

// ValidatePoster validates the credentials needed to post messages
func (c *Config) ValidatePoster() error {
	switch c.Platform {
	case "slack":
		if c.Slack.BotToken == "" {
			return &ConfigError{Field: "SLACK_BOT_TOKEN", Message: "required"}
		}
	case "feishu":
		if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
		}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
