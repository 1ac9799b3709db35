package conf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptsConfig contains all prompt configurations loaded from YAML
type PromptsConfig struct {
	Persona PersonaPrompts `yaml:"persona"`
	Reply   ReplyPrompts   `yaml:"reply"`
}

// PersonaPrompts describes who the bot is
type PersonaPrompts struct {
	// Intro is used when no prompt version is stored under PROMPT_ID
	Intro string `yaml:"intro"`
}

// ReplyPrompts contains the reply generation templates
type ReplyPrompts struct {
	Template         string `yaml:"template"`
	ToolsInstruction string `yaml:"tools_instruction"`
	EmptyHistory     string `yaml:"empty_history"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/slack-chat-bridge/prompts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		if b, err := os.ReadFile(p); err == nil {
			data, loadedPath = b, p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("read prompts config %s: not found", configPath)
		}
		slog.Debug("prompts_config_default")
		return DefaultPromptsConfig(), nil
	}

	slog.Debug("prompts_config_loaded", "path", loadedPath)

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse prompts config: %w", err)
	}
	config.fillDefaults()
	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.Persona.Intro == "" {
		c.Persona.Intro = defaults.Persona.Intro
	}
	if c.Reply.Template == "" {
		c.Reply.Template = defaults.Reply.Template
	}
	if c.Reply.ToolsInstruction == "" {
		c.Reply.ToolsInstruction = defaults.Reply.ToolsInstruction
	}
	if c.Reply.EmptyHistory == "" {
		c.Reply.EmptyHistory = defaults.Reply.EmptyHistory
	}
}

// FormatIntro fills the persona placeholders
func FormatIntro(intro, botName, botID string) string {
	r := strings.NewReplacer("{{bot_name}}", botName, "{{bot_id}}", botID)
	return strings.TrimSpace(r.Replace(intro))
}

// FormatReply renders the reply template
func (c *PromptsConfig) FormatReply(history, current string) string {
	if history == "" {
		history = c.Reply.EmptyHistory
	}
	r := strings.NewReplacer("{{history}}", history, "{{current}}", current)
	return strings.TrimSpace(r.Replace(c.Reply.Template))
}

// DefaultPromptsConfig returns the default prompts configuration
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		Persona: PersonaPrompts{
			Intro: `You are {{bot_name}}. Your slack id is <@{{bot_id}}>.
You are a regular member of a community chat group.
You have conversations with multiple other users and share thoughts and comment on topics.
You should answer as humanly as possible.
You are not an assistant. If people ask you to do things, you can say no.
Do not answer complex financial or political questions.
Reply with a comment or a question in a natural, informal voice. Banter or be friendly depending on the mood.
User names start with "<@" and end with ">". Example "<@{{bot_id}}>".
Keep responses short.`,
		},
		Reply: ReplyPrompts{
			Template: `ChatHistory:
{{history}}

Message to reply to:
{{current}}

Write only your chat reply.`,
			ToolsInstruction: `Use the search tool for current events, weather or time, with a targeted query.
Use the calculator tool for arithmetic. Answer simple chatter directly without tools.`,
			EmptyHistory: "(no earlier messages)",
		},
	}
}
