package data

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
)

// ErrQueueClosed is returned by Dequeue after Close
var ErrQueueClosed = errors.New("queue closed")

type sessionQueue struct {
	items    []*domain.QueueItem
	inFlight bool
}

// memoryQueue keeps one FIFO per session and a ready list of sessions
// whose head item may be delivered. A session leaves the ready list while
// its head is in flight and rejoins on Ack.
type memoryQueue struct {
	mu        sync.Mutex
	queues    map[string]*sessionQueue
	ready     *list.List // session ids
	dedup     map[string]time.Time
	window    time.Duration
	lastPrune time.Time
	now       func() time.Time
	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates an in-process dispatch queue
func NewMemoryQueue(dedupWindow time.Duration) repo.DispatchQueue {
	return newMemoryQueue(dedupWindow, time.Now)
}

func newMemoryQueue(dedupWindow time.Duration, now func() time.Time) *memoryQueue {
	return &memoryQueue{
		queues: make(map[string]*sessionQueue),
		ready:  list.New(),
		dedup:  make(map[string]time.Time),
		window: dedupWindow,
		now:    now,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (q *memoryQueue) Enqueue(ctx context.Context, item *domain.QueueItem) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.pruneLocked(now)
	key := item.DedupID
	if key == "" {
		key = item.ID
	}
	if seen, ok := q.dedup[key]; ok && now.Sub(seen) < q.window {
		return false, nil
	}
	q.dedup[key] = now

	sq := q.queues[item.SessionID]
	if sq == nil {
		sq = &sessionQueue{}
		q.queues[item.SessionID] = sq
	}
	sq.items = append(sq.items, item)
	if len(sq.items) == 1 && !sq.inFlight {
		q.ready.PushBack(item.SessionID)
		q.signal()
	}
	return true, nil
}

func (q *memoryQueue) Dequeue(ctx context.Context) (*domain.QueueItem, error) {
	for {
		q.mu.Lock()
		if elem := q.ready.Front(); elem != nil {
			sessionID := q.ready.Remove(elem).(string)
			sq := q.queues[sessionID]
			sq.inFlight = true
			item := sq.items[0]
			if q.ready.Len() > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.closed:
			return nil, ErrQueueClosed
		case <-q.notify:
		}
	}
}

func (q *memoryQueue) Ack(ctx context.Context, item *domain.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sq := q.queues[item.SessionID]
	if sq == nil {
		return nil
	}
	if len(sq.items) > 0 && sq.items[0].ID == item.ID {
		sq.items[0] = nil
		sq.items = sq.items[1:]
	}
	sq.inFlight = false
	if len(sq.items) == 0 {
		delete(q.queues, item.SessionID)
		return nil
	}
	q.ready.PushBack(item.SessionID)
	q.signal()
	return nil
}

// Recover is a no-op: in-process state does not outlive a crash
func (q *memoryQueue) Recover(ctx context.Context) error {
	return nil
}

func (q *memoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

// Len returns the number of undelivered and in-flight items
func (q *memoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, sq := range q.queues {
		n += len(sq.items)
	}
	return n
}

func (q *memoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *memoryQueue) pruneLocked(now time.Time) {
	if now.Sub(q.lastPrune) < time.Minute {
		return
	}
	q.lastPrune = now
	for k, seen := range q.dedup {
		if now.Sub(seen) >= q.window {
			delete(q.dedup, k)
		}
	}
}
