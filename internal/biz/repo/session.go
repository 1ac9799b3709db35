package repo

import (
	"context"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
)

// SessionRepo is the session store interface
type SessionRepo interface {
	// Get returns the session, or nil when it has never been stored
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Put overwrites the whole record (last writer wins)
	Put(ctx context.Context, session *domain.Session) error

	// PutIfUnchanged writes only if the stored LastEventId still equals
	// expectedLastEventID. An empty expectedLastEventID with exists=false
	// means the record must not exist yet. Returns domain.ErrConflict otherwise.
	PutIfUnchanged(ctx context.Context, session *domain.Session, exists bool, expectedLastEventID string) error

	// Delete removes the record
	Delete(ctx context.Context, sessionID string) error

	Close() error
}
