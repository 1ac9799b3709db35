package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
)

// Mock implementations

type mockSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	puts      int
	getErr    error
	putErr    error
	conflicts int // number of conditional writes to reject before accepting
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (m *mockSessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *mockSessionRepo) Put(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *mockSessionRepo) PutIfUnchanged(ctx context.Context, session *domain.Session, exists bool, expected string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		return domain.ErrConflict
	}
	cur, ok := m.sessions[session.ID]
	if ok != exists || (ok && cur.LastEventID != expected) {
		return domain.ErrConflict
	}
	m.puts++
	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *mockSessionRepo) Close() error {
	return nil
}

func (m *mockSessionRepo) put(s *domain.Session) {
	m.sessions[s.ID] = s.Clone()
}

type enqueueCall struct {
	sessionID string
	payload   []byte
	dedupID   string
}

type mockEnqueuer struct {
	calls []enqueueCall
	err   error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, sessionID string, payload []byte, dedupID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.calls = append(m.calls, enqueueCall{sessionID, payload, dedupID})
	return true, nil
}

type mockQueue struct {
	items []*domain.QueueItem
	seen  map[string]bool
	acked []string
}

func (m *mockQueue) Enqueue(ctx context.Context, item *domain.QueueItem) (bool, error) {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	if m.seen[item.DedupID] {
		return false, nil
	}
	m.seen[item.DedupID] = true
	m.items = append(m.items, item)
	return true, nil
}

func (m *mockQueue) Dequeue(ctx context.Context) (*domain.QueueItem, error) {
	if len(m.items) == 0 {
		return nil, errors.New("empty")
	}
	item := m.items[0]
	m.items = m.items[1:]
	return item, nil
}

func (m *mockQueue) Ack(ctx context.Context, item *domain.QueueItem) error {
	m.acked = append(m.acked, item.ID)
	return nil
}

func (m *mockQueue) Recover(ctx context.Context) error { return nil }

func (m *mockQueue) Close() error { return nil }

type mockGenerator struct {
	reply    string
	err      error
	requests []repo.ReplyRequest
}

func (m *mockGenerator) Generate(ctx context.Context, req repo.ReplyRequest) (string, error) {
	m.requests = append(m.requests, req)
	return m.reply, m.err
}

type postCall struct {
	channelID string
	text      string
}

type mockPoster struct {
	posts []postCall
	err   error
}

func (m *mockPoster) PostMessage(ctx context.Context, channelID, text string) error {
	if m.err != nil {
		return m.err
	}
	m.posts = append(m.posts, postCall{channelID, text})
	return nil
}
