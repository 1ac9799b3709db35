package conf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("PROMPTS_CONFIG_PATH", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("STORE_DSN", "")
	t.Setenv("ENGAGEMENT_WINDOW_MINUTES", "")
	t.Setenv("QUEUE_DRIVER", "")
	t.Setenv("PLATFORM", "")

	cfg := LoadFromEnv()

	if cfg.Platform != "slack" {
		t.Errorf("Platform = %q", cfg.Platform)
	}
	if cfg.Store.Driver != "sqlite" || !strings.HasSuffix(cfg.Store.DSN, "sessions.db") {
		t.Errorf("Unexpected store config: %+v", cfg.Store)
	}
	if cfg.Queue.Driver != "memory" || cfg.Queue.DedupWindow != 5*time.Minute {
		t.Errorf("Unexpected queue config: %+v", cfg.Queue)
	}
	if cfg.EngagementWindow != 30*time.Minute {
		t.Errorf("EngagementWindow = %v", cfg.EngagementWindow)
	}
	if cfg.LLM.MaxTokens != 100 {
		t.Errorf("MaxTokens = %d", cfg.LLM.MaxTokens)
	}
	if cfg.Prompts == nil || cfg.Prompts.Persona.Intro == "" {
		t.Error("Expected default prompts")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PLATFORM", "Feishu")
	t.Setenv("STORE_CONDITIONAL_WRITES", "true")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("ENGAGEMENT_WINDOW_MINUTES", "10")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := LoadFromEnv()

	if cfg.Platform != "feishu" {
		t.Errorf("Platform = %q", cfg.Platform)
	}
	if !cfg.Store.ConditionalWrites {
		t.Error("Expected conditional writes")
	}
	if cfg.Worker.Concurrency != 8 {
		t.Errorf("Concurrency = %d", cfg.Worker.Concurrency)
	}
	if cfg.EngagementWindow != 10*time.Minute {
		t.Errorf("EngagementWindow = %v", cfg.EngagementWindow)
	}
	if cfg.Queue.RedisDB != 0 {
		t.Errorf("Invalid REDIS_DB should fall back to 0, got %d", cfg.Queue.RedisDB)
	}
}

func validConfig() *Config {
	return &Config{
		Platform:         "slack",
		Bot:              BotConfig{UserID: "UBOT"},
		Slack:            SlackConfig{Mode: "events", BotToken: "xoxb-1"},
		Store:            StoreConfig{Driver: "sqlite", DSN: "/tmp/x.db"},
		Queue:            QueueConfig{Driver: "memory"},
		Worker:           WorkerConfig{Concurrency: 1},
		LLM:              LLMConfig{Generator: "openai", APIKey: "sk"},
		EngagementWindow: 30 * time.Minute,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing bot id", func(c *Config) { c.Bot.UserID = "" }, "BOT_USER_ID"},
		{"bad platform", func(c *Config) { c.Platform = "irc" }, "PLATFORM"},
		{"socket without app token", func(c *Config) { c.Slack.Mode = "socket" }, "SLACK_APP_TOKEN"},
		{"bad store", func(c *Config) { c.Store.Driver = "dynamo" }, "STORE_DRIVER"},
		{"bad queue", func(c *Config) { c.Queue.Driver = "sqs" }, "QUEUE_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.wantField {
				t.Errorf("Expected ConfigError on %s, got %v", tt.wantField, err)
			}
		})
	}
}

func TestValidateWorker(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateWorker(); err != nil {
		t.Fatalf("Expected valid worker config, got %v", err)
	}

	cfg.LLM.APIKey = ""
	if err := cfg.ValidateWorker(); err == nil {
		t.Error("Expected error for missing LLM_API_KEY")
	}

	cfg = validConfig()
	cfg.Slack.BotToken = ""
	if err := cfg.ValidateWorker(); err == nil {
		t.Error("Expected error for missing SLACK_BOT_TOKEN")
	}
}

func TestLoadPromptsConfig_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	yaml := "persona:\n  intro: \"You are {{bot_name}} (<@{{bot_id}}>).\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write prompts: %v", err)
	}

	cfg, err := LoadPromptsConfig(path)
	if err != nil {
		t.Fatalf("LoadPromptsConfig failed: %v", err)
	}
	if got := FormatIntro(cfg.Persona.Intro, "Tess", "UBOT"); got != "You are Tess (<@UBOT>)." {
		t.Errorf("FormatIntro() = %q", got)
	}
	if cfg.Reply.Template != DefaultPromptsConfig().Reply.Template {
		t.Error("Expected default reply template")
	}
}

func TestLoadPromptsConfig_MissingExplicitPath(t *testing.T) {
	if _, err := LoadPromptsConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit path")
	}
}

func TestFormatReply(t *testing.T) {
	cfg := DefaultPromptsConfig()

	got := cfg.FormatReply("", "U1(human): hi")
	if !strings.Contains(got, "(no earlier messages)") || !strings.Contains(got, "U1(human): hi") {
		t.Errorf("Unexpected reply prompt: %q", got)
	}
}
