package data

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/conf"
)

func newTestPromptRepo(t *testing.T) repo.PromptRepo {
	t.Helper()
	db, d, err := openDB("sqlite", filepath.Join(t.TempDir(), "prompts.db"))
	if err != nil {
		t.Fatalf("openDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	prompts, err := newPromptRepo(db, d)
	if err != nil {
		t.Fatalf("newPromptRepo failed: %v", err)
	}
	return prompts
}

func TestPersona_SystemPrompt(t *testing.T) {
	prompts := newTestPromptRepo(t)
	ctx := context.Background()
	if err := prompts.SavePrompt(ctx, &domain.PromptVersion{PromptID: "v2", Intro: "I am {{bot_name}} <@{{bot_id}}>"}); err != nil {
		t.Fatalf("SavePrompt failed: %v", err)
	}
	cfg := conf.DefaultPromptsConfig()
	cfg.Persona.Intro = "Default {{bot_name}}"

	tests := []struct {
		name     string
		promptID string
		want     string
	}{
		{"stored version", "v2", "I am Tess <@UBOT>"},
		{"unknown version falls back", "v9", "Default Tess"},
		{"no version", "", "Default Tess"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPersona(prompts, tt.promptID, cfg, "Tess", "UBOT", nil)
			if got := p.SystemPrompt(ctx); got != tt.want {
				t.Errorf("SystemPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPersona_UserPromptEmptyHistory(t *testing.T) {
	cfg := conf.DefaultPromptsConfig()
	cfg.Reply.Template = "{{history}}|{{current}}"
	cfg.Reply.EmptyHistory = "(none)"

	p := NewPersona(nil, "", cfg, "Tess", "UBOT", nil)
	if got := p.UserPrompt("", "alice: hi"); got != "(none)|alice: hi" {
		t.Errorf("UserPrompt() = %q", got)
	}
}
