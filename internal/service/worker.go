package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/usecase"
	"github.com/tessbot/slack-chat-bridge/internal/logutil"
)

const (
	ackTimeout     = 5 * time.Second
	dequeueBackoff = time.Second
)

// ReplyWorker consumes the dispatch queue with a fixed number of goroutines.
// Items are acknowledged whether or not the reply succeeded.
type ReplyWorker struct {
	dispatch    *usecase.DispatchUsecase
	concurrency int
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewReplyWorker creates a new reply worker
func NewReplyWorker(dispatch *usecase.DispatchUsecase, concurrency int, logger *slog.Logger) *ReplyWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplyWorker{
		dispatch:    dispatch,
		concurrency: concurrency,
		logger:      logger.With("component", "worker"),
	}
}

// Run consumes until ctx is canceled
func (w *ReplyWorker) Run(ctx context.Context) error {
	if err := w.dispatch.Recover(ctx); err != nil {
		w.logger.Warn("queue_recover_failed", "error", err)
	}
	w.logger.Info("worker_started", "concurrency", w.concurrency)

	w.wg.Add(w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		go w.loop(ctx, i)
	}
	w.wg.Wait()

	w.logger.Info("worker_stopped")
	return nil
}

func (w *ReplyWorker) loop(ctx context.Context, id int) {
	defer w.wg.Done()
	logger := w.logger.With("worker", id)

	for {
		item, err := w.dispatch.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("dequeue_failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}
		w.process(ctx, logger, item)
	}
}

// process handles one item. Nothing is retried here; the next event for the
// session gets a fresh chance.
func (w *ReplyWorker) process(ctx context.Context, logger *slog.Logger, item *domain.QueueItem) {
	logger = logger.With("session_id", item.SessionID, "item_id", item.ID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("consume_panic", "panic", r)
		}
		ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
		defer cancel()
		if err := w.dispatch.Done(ackCtx, item); err != nil {
			logger.Error("ack_failed", "error", err)
		}
	}()

	start := time.Now()
	reply, err := w.dispatch.Consume(ctx, item)
	if err != nil {
		logConsumeError(logger, err)
		return
	}
	logger.Info("reply_posted",
		"duration_ms", time.Since(start).Milliseconds(),
		"reply", logutil.Truncate(reply.Text, 80),
	)
}

func logConsumeError(logger *slog.Logger, err error) {
	var collab *domain.CollaboratorError
	switch {
	case errors.Is(err, domain.ErrEmptyHistory):
		logger.Warn("reply_skipped_empty_history")
	case errors.Is(err, domain.ErrMalformedEvent):
		logger.Warn("queue_item_malformed", "error", err)
	case errors.As(err, &collab):
		logger.Error("collaborator_failed", "op", collab.Op, "error", err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		logger.Error("session_store_unavailable", "error", err)
	default:
		logger.Error("consume_failed", "error", err)
	}
}
