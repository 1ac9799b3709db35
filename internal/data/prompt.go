package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
)

var promptColumns = []string{"prompt_id", "intro", "updated_at"}

// promptRepo stores persona prompt versions next to the sessions table
type promptRepo struct {
	db      *sql.DB
	dialect dialect
}

func newPromptRepo(db *sql.DB, d dialect) (repo.PromptRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS prompts (
			prompt_id VARCHAR(255) PRIMARY KEY,
			intro TEXT NOT NULL,
			updated_at BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompts table: %w", err)
	}
	return &promptRepo{db: db, dialect: d}, nil
}

// GetPrompt returns the prompt version, or nil when unknown
func (r *promptRepo) GetPrompt(ctx context.Context, promptID string) (*domain.PromptVersion, error) {
	var p domain.PromptVersion
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT prompt_id, intro FROM prompts WHERE prompt_id = ?`), promptID).
		Scan(&p.PromptID, &p.Intro)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query prompt: %w", err)
	}
	return &p, nil
}

// SavePrompt creates or replaces a prompt version
func (r *promptRepo) SavePrompt(ctx context.Context, p *domain.PromptVersion) error {
	if p.PromptID == "" {
		return errors.New("prompt id is required")
	}
	_, err := r.db.ExecContext(ctx, r.dialect.upsert("prompts", "prompt_id", promptColumns), p.PromptID, p.Intro, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save prompt: %w", err)
	}
	return nil
}
