package data

import (
	"context"
	"log/slog"

	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/conf"
)

// Persona resolves the bot's system prompt: the stored prompt version
// named by PROMPT_ID when present, else the YAML intro.
type Persona struct {
	prompts  repo.PromptRepo
	promptID string
	config   *conf.PromptsConfig
	botName  string
	botID    string
	logger   *slog.Logger
}

// NewPersona creates a persona resolver. prompts may be nil.
func NewPersona(prompts repo.PromptRepo, promptID string, config *conf.PromptsConfig, botName, botID string, logger *slog.Logger) *Persona {
	if config == nil {
		config = conf.DefaultPromptsConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persona{
		prompts:  prompts,
		promptID: promptID,
		config:   config,
		botName:  botName,
		botID:    botID,
		logger:   logger.With("component", "persona"),
	}
}

// SystemPrompt returns the persona intro with placeholders filled
func (p *Persona) SystemPrompt(ctx context.Context) string {
	intro := p.config.Persona.Intro
	if p.prompts != nil && p.promptID != "" {
		stored, err := p.prompts.GetPrompt(ctx, p.promptID)
		switch {
		case err != nil:
			p.logger.Warn("prompt_lookup_failed", "prompt_id", p.promptID, "error", err)
		case stored == nil:
			p.logger.Debug("prompt_not_found", "prompt_id", p.promptID)
		default:
			intro = stored.Intro
		}
	}
	return conf.FormatIntro(intro, p.botName, p.botID)
}

// UserPrompt renders the conversation part of the prompt
func (p *Persona) UserPrompt(prior, current string) string {
	return p.config.FormatReply(prior, current)
}

// ToolsInstruction returns the tool usage hint for tool-using generators
func (p *Persona) ToolsInstruction() string {
	return p.config.Reply.ToolsInstruction
}
