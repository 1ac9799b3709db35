package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
)

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func (m *memSessions) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

func (m *memSessions) Put(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memSessions) PutIfUnchanged(ctx context.Context, s *domain.Session, exists bool, expected string) error {
	return m.Put(ctx, s)
}

func (m *memSessions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) Close() error { return nil }

type stubPoster struct {
	channel, text string
	err           error
}

func (p *stubPoster) PostMessage(ctx context.Context, channelID, text string) error {
	p.channel, p.text = channelID, text
	return p.err
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()
	if _, err := s.Connect(ctx, serverT); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) failed: %v", name, err)
	}
	if out != nil && res.StructuredContent != nil {
		raw, _ := json.Marshal(res.StructuredContent)
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s output: %v", name, err)
		}
	}
	return res
}

func TestSessionHistoryAndReset(t *testing.T) {
	store := &memSessions{sessions: map[string]*domain.Session{}}
	s := domain.NewSession("C1")
	s.Append(domain.NewHumanTurn("U1", "hello"))
	s.Append(domain.NewAITurn("UBOT", "hi!"))
	s.LastEventID = "e2"
	s.Tag(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	_ = store.Put(context.Background(), s)

	cs := connect(t, NewServer(store, nil, "test"))

	var hist SessionHistoryOutput
	callTool(t, cs, "session_history", map[string]any{"session_id": "C1"}, &hist)
	if !hist.Found || hist.LastEventID != "e2" || hist.LastTagged != "2024-05-01T12:00:00Z" {
		t.Errorf("Unexpected history output: %+v", hist)
	}
	if len(hist.Turns) != 2 || hist.Turns[1].Role != "ai" || hist.Turns[1].Speaker != "UBOT" {
		t.Errorf("Unexpected turns: %+v", hist.Turns)
	}

	var reset ResultOutput
	callTool(t, cs, "session_reset", map[string]any{"session_id": "C1"}, &reset)
	if !reset.Success {
		t.Errorf("reset failed: %+v", reset)
	}

	hist = SessionHistoryOutput{}
	callTool(t, cs, "session_history", map[string]any{"session_id": "C1"}, &hist)
	if hist.Found || len(hist.Turns) != 0 {
		t.Errorf("Expected no session after reset: %+v", hist)
	}
}

func TestPostMessage(t *testing.T) {
	store := &memSessions{sessions: map[string]*domain.Session{}}
	poster := &stubPoster{}
	cs := connect(t, NewServer(store, poster, "test"))

	var out ResultOutput
	callTool(t, cs, "post_message", map[string]any{"channel_id": "C9", "text": "hi all"}, &out)
	if !out.Success || poster.channel != "C9" || poster.text != "hi all" {
		t.Errorf("Unexpected post: %+v %+v", out, poster)
	}

	poster.err = errors.New("channel_not_found")
	out = ResultOutput{}
	callTool(t, cs, "post_message", map[string]any{"channel_id": "C9", "text": "again"}, &out)
	if out.Success || out.Error == "" {
		t.Errorf("Expected failure output, got %+v", out)
	}
}

func TestPostMessageDisabledWithoutPoster(t *testing.T) {
	store := &memSessions{sessions: map[string]*domain.Session{}}
	cs := connect(t, NewServer(store, nil, "test"))

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	for _, tool := range res.Tools {
		if tool.Name == "post_message" {
			t.Error("post_message should not be registered without a poster")
		}
	}
}
