package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/conf"
)

// Repositories contains all repositories
type Repositories struct {
	Session repo.SessionRepo
	Prompt  repo.PromptRepo
	Queue   repo.DispatchQueue

	db *sql.DB
}

// NewRepositories opens the session store and the dispatch queue.
// Sessions and prompt versions share one database.
func NewRepositories(cfg *conf.Config) (*Repositories, error) {
	db, d, err := openDB(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	sessions, err := newSessionRepo(db, d)
	if err != nil {
		db.Close()
		return nil, err
	}
	prompts, err := newPromptRepo(db, d)
	if err != nil {
		db.Close()
		return nil, err
	}
	queue, err := NewQueue(cfg.Queue)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Repositories{
		Session: sessions,
		Prompt:  prompts,
		Queue:   queue,
		db:      db,
	}, nil
}

// NewQueue creates the configured dispatch queue
func NewQueue(cfg conf.QueueConfig) (repo.DispatchQueue, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryQueue(cfg.DedupWindow), nil
	case "redis":
		return NewRedisQueue(RedisQueueOptions{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DedupWindow: cfg.DedupWindow,
			Lease:       cfg.Lease,
		})
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}

// NewGenerator creates the configured reply generator
func NewGenerator(ctx context.Context, cfg *conf.Config, prompts repo.PromptRepo, logger *slog.Logger) (repo.ReplyGenerator, error) {
	persona := NewPersona(prompts, cfg.LLM.PromptID, cfg.Prompts, cfg.Bot.Name, cfg.Bot.UserID, logger)
	switch cfg.LLM.Generator {
	case "openai":
		return NewOpenAIGenerator(cfg.LLM, persona), nil
	case "eino":
		return NewEinoGenerator(ctx, cfg.LLM, persona)
	default:
		return nil, fmt.Errorf("unknown generator %q", cfg.LLM.Generator)
	}
}

// Close releases the queue and the database
func (r *Repositories) Close() error {
	return errors.Join(r.Queue.Close(), r.Session.Close(), r.db.Close())
}
