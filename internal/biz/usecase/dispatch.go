package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
)

var errEmptyReply = errors.New("generator returned empty reply")

// DispatchConfig configures the dispatch gateway
type DispatchConfig struct {
	BotID             string // speaker recorded on ai turns
	BotName           string
	ConditionalWrites bool
	GenerateTimeout   time.Duration
	PostTimeout       time.Duration
}

// Reply is the outcome of consuming one queue item
type Reply struct {
	SessionID string
	Text      string
}

// DispatchUsecase is both sides of the reply queue: it enqueues reply
// requests and consumes them into posted replies.
type DispatchUsecase struct {
	queue       repo.DispatchQueue
	sessionRepo repo.SessionRepo
	generator   repo.ReplyGenerator
	poster      repo.MessagePoster
	cfg         DispatchConfig
	newID       func() string
	now         func() time.Time
}

// NewDispatchUsecase creates a new dispatch usecase
func NewDispatchUsecase(
	queue repo.DispatchQueue,
	sessionRepo repo.SessionRepo,
	generator repo.ReplyGenerator,
	poster repo.MessagePoster,
	cfg DispatchConfig,
) *DispatchUsecase {
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}
	if cfg.PostTimeout <= 0 {
		cfg.PostTimeout = 30 * time.Second
	}
	return &DispatchUsecase{
		queue:       queue,
		sessionRepo: sessionRepo,
		generator:   generator,
		poster:      poster,
		cfg:         cfg,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Enqueue submits a reply request for sessionID. A dedup hit counts as success.
func (uc *DispatchUsecase) Enqueue(ctx context.Context, sessionID string, payload []byte, dedupID string) (bool, error) {
	item := &domain.QueueItem{
		ID:         uc.newID(),
		SessionID:  sessionID,
		Payload:    payload,
		DedupID:    dedupID,
		EnqueuedAt: uc.now(),
	}
	added, err := uc.queue.Enqueue(ctx, item)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", sessionID, err)
	}
	return added, nil
}

// Next blocks until a queue item is ready
func (uc *DispatchUsecase) Next(ctx context.Context) (*domain.QueueItem, error) {
	return uc.queue.Dequeue(ctx)
}

// Done acknowledges a consumed item, successful or not
func (uc *DispatchUsecase) Done(ctx context.Context, item *domain.QueueItem) error {
	return uc.queue.Ack(ctx, item)
}

// Recover re-readies sessions abandoned mid-flight
func (uc *DispatchUsecase) Recover(ctx context.Context) error {
	return uc.queue.Recover(ctx)
}

// Consume generates a reply for the session named by item, records it as an
// ai turn, persists the session, and posts the reply to the channel.
func (uc *DispatchUsecase) Consume(ctx context.Context, item *domain.QueueItem) (*Reply, error) {
	if item == nil || item.SessionID == "" {
		return nil, fmt.Errorf("queue item without session: %w", domain.ErrMalformedEvent)
	}
	sessionID := item.SessionID

	session, err := uc.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrEmptyHistory)
	}
	last, err := session.History.LastTurn()
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	gctx, cancel := context.WithTimeout(ctx, uc.cfg.GenerateTimeout)
	text, err := uc.generator.Generate(gctx, repo.ReplyRequest{
		SessionID:    sessionID,
		PriorHistory: session.History.TurnsBeforeLast(),
		Current:      last.Render(),
		BotName:      uc.cfg.BotName,
	})
	cancel()
	if err != nil {
		return nil, domain.NewCollaboratorError(domain.OpGenerate, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewCollaboratorError(domain.OpGenerate, errEmptyReply)
	}

	if err := uc.persistReply(ctx, session, text); err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, uc.cfg.PostTimeout)
	defer cancel()
	if err := uc.poster.PostMessage(pctx, sessionID, text); err != nil {
		return nil, domain.NewCollaboratorError(domain.OpPost, err)
	}

	return &Reply{SessionID: sessionID, Text: text}, nil
}

func (uc *DispatchUsecase) persistReply(ctx context.Context, session *domain.Session, text string) error {
	turn := domain.NewAITurn(uc.cfg.BotID, text)
	if !uc.cfg.ConditionalWrites {
		session.Append(turn)
		if err := uc.sessionRepo.Put(ctx, session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	}

	exists := true
	for attempt := 0; ; attempt++ {
		expected := session.LastEventID
		session.Append(turn)
		err := uc.sessionRepo.PutIfUnchanged(ctx, session, exists, expected)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= 3 {
			return fmt.Errorf("save session: %w", err)
		}
		fresh, err := uc.sessionRepo.Get(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		exists = fresh != nil
		if !exists {
			fresh = domain.NewSession(session.ID)
		}
		session = fresh
	}
}
