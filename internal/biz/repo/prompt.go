package repo

import (
	"context"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
)

// PromptRepo stores versioned persona prompts
type PromptRepo interface {
	// GetPrompt returns nil when the prompt id is unknown
	GetPrompt(ctx context.Context, promptID string) (*domain.PromptVersion, error)
	SavePrompt(ctx context.Context, prompt *domain.PromptVersion) error
}
