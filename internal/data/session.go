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

var sessionColumns = []string{"session_id", "history", "last_event_id", "last_tagged", "updated_at"}

// sessionRepo implements the Session repository on a SQL database
type sessionRepo struct {
	db      *sql.DB
	dialect dialect
	owned   bool // close db on Close
}

// NewSessionRepo opens the store and creates the sessions table
func NewSessionRepo(driver, dsn string) (repo.SessionRepo, error) {
	db, d, err := openDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	r, err := newSessionRepo(db, d)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.owned = true
	return r, nil
}

func newSessionRepo(db *sql.DB, d dialect) (*sessionRepo, error) {
	// Create table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id VARCHAR(255) PRIMARY KEY,
			history TEXT NOT NULL,
			last_event_id VARCHAR(255) NOT NULL DEFAULT '',
			last_tagged DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &sessionRepo{db: db, dialect: d}, nil
}

// Get gets a session by id
func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`
		SELECT session_id, history, last_event_id, last_tagged
		FROM sessions
		WHERE session_id = ?
	`), sessionID)

	var id, history, lastEventID string
	var lastTagged float64
	err := row.Scan(&id, &history, &lastEventID, &lastTagged)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w: %w", domain.ErrStoreUnavailable, err)
	}

	h, err := domain.UnmarshalHistory([]byte(history))
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w: %w", sessionID, domain.ErrStoreUnavailable, err)
	}
	return &domain.Session{
		ID:          id,
		History:     h,
		LastEventID: lastEventID,
		LastTagged:  domain.FromUnixSeconds(lastTagged),
	}, nil
}

// Put overwrites the whole session record
func (r *sessionRepo) Put(ctx context.Context, session *domain.Session) error {
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.dialect.upsert("sessions", "session_id", sessionColumns), args...); err != nil {
		return fmt.Errorf("save session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// PutIfUnchanged writes the session only if the stored record is still the one that was read
func (r *sessionRepo) PutIfUnchanged(ctx context.Context, session *domain.Session, exists bool, expectedLastEventID string) error {
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}

	var res sql.Result
	if exists {
		res, err = r.db.ExecContext(ctx, r.dialect.rebind(`
			UPDATE sessions SET history = ?, last_event_id = ?, last_tagged = ?, updated_at = ?
			WHERE session_id = ? AND last_event_id = ?
		`), args[1], args[2], args[3], args[4], session.ID, expectedLastEventID)
	} else {
		res, err = r.db.ExecContext(ctx, r.dialect.insertIfAbsent("sessions", "session_id", sessionColumns), args...)
	}
	if err != nil {
		return fmt.Errorf("save session: %w: %w", domain.ErrStoreUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", session.ID, domain.ErrConflict)
	}
	return nil
}

// Delete deletes a session
func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM sessions WHERE session_id = ?`), sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the database connection
func (r *sessionRepo) Close() error {
	if !r.owned {
		return nil
	}
	return r.db.Close()
}

func sessionArgs(s *domain.Session) ([]any, error) {
	history, err := domain.MarshalHistory(s.History)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return []any{s.ID, string(history), s.LastEventID, domain.UnixSeconds(s.LastTagged), time.Now().Unix()}, nil
}
