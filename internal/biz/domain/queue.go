package domain

import "time"

// QueueItem is a reply request waiting in the dispatch queue.
// Items sharing a SessionID are delivered in FIFO order.
type QueueItem struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Payload    []byte    `json:"payload"`
	DedupID    string    `json:"dedup_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
