package repo

import (
	"context"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
)

// DispatchQueue is the reply queue transport. Items of one session are
// delivered in order and never more than one at a time.
type DispatchQueue interface {
	// Enqueue adds an item. Returns false when the dedup id was seen
	// within the dedup window; that is not an error.
	Enqueue(ctx context.Context, item *domain.QueueItem) (bool, error)

	// Dequeue blocks until an item is ready or ctx is done
	Dequeue(ctx context.Context) (*domain.QueueItem, error)

	// Ack releases the session so its next item can be delivered
	Ack(ctx context.Context, item *domain.QueueItem) error

	// Recover makes sessions left in flight by a crashed worker ready again
	Recover(ctx context.Context) error

	Close() error
}
