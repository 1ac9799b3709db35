package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
)

// Server exposes session inspection and posting as MCP tools
type Server struct {
	server   *mcp.Server
	sessions repo.SessionRepo
	poster   repo.MessagePoster // nil disables post_message
}

// NewServer creates a new MCP server
func NewServer(sessions repo.SessionRepo, poster repo.MessagePoster, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "chat-bridge-tools",
			Version: version,
		}, nil),
		sessions: sessions,
		poster:   poster,
	}
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves over an arbitrary transport
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "session_history",
		Description: "Get the stored conversation window of a channel: up to the 10 most recent turns, the last admitted event id and the last direct-address time.",
	}, s.handleSessionHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "session_reset",
		Description: "Forget the stored conversation of a channel. The next message starts a fresh session.",
	}, s.handleSessionReset)

	if s.poster != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "post_message",
			Description: "Post a message to a channel as the bot. The message is not recorded in the session history.",
		}, s.handlePostMessage)
	}
}

// SessionInput names a session
type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"The channel or chat id of the session"`
}

// Turn is one rendered history entry
type Turn struct {
	Role    string `json:"role"`
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// SessionHistoryOutput is the output for session_history
type SessionHistoryOutput struct {
	Found       bool   `json:"found"`
	SessionID   string `json:"session_id"`
	Turns       []Turn `json:"turns"`
	LastEventID string `json:"last_event_id,omitempty"`
	LastTagged  string `json:"last_tagged,omitempty"` // RFC 3339, empty before the first direct address
}

func (s *Server) handleSessionHistory(ctx context.Context, req *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, SessionHistoryOutput, error) {
	out := SessionHistoryOutput{SessionID: input.SessionID, Turns: []Turn{}}
	if input.SessionID == "" {
		return nil, out, fmt.Errorf("session_id is required")
	}
	session, err := s.sessions.Get(ctx, input.SessionID)
	if err != nil {
		return nil, out, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, out, nil
	}

	out.Found = true
	out.LastEventID = session.LastEventID
	if session.LastTagged.Unix() > 0 {
		out.LastTagged = session.LastTagged.UTC().Format(time.RFC3339)
	}
	for _, t := range session.History.Turns() {
		out.Turns = append(out.Turns, Turn{Role: string(t.Role), Speaker: t.Speaker, Content: t.Content})
	}
	return nil, out, nil
}

// ResultOutput reports the outcome of a side-effecting tool
type ResultOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleSessionReset(ctx context.Context, req *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, ResultOutput, error) {
	if input.SessionID == "" {
		return nil, ResultOutput{Error: "session_id is required"}, nil
	}
	if err := s.sessions.Delete(ctx, input.SessionID); err != nil {
		return nil, ResultOutput{Error: err.Error()}, nil
	}
	return nil, ResultOutput{Success: true}, nil
}

// PostMessageInput is the input for post_message
type PostMessageInput struct {
	ChannelID string `json:"channel_id" jsonschema:"The channel or chat id to post to"`
	Text      string `json:"text" jsonschema:"The message text. Mention users as <@user_id>"`
}

func (s *Server) handlePostMessage(ctx context.Context, req *mcp.CallToolRequest, input PostMessageInput) (*mcp.CallToolResult, ResultOutput, error) {
	if input.ChannelID == "" || input.Text == "" {
		return nil, ResultOutput{Error: "channel_id and text are required"}, nil
	}
	if err := s.poster.PostMessage(ctx, input.ChannelID, input.Text); err != nil {
		return nil, ResultOutput{Error: domain.NewCollaboratorError(domain.OpPost, err).Error()}, nil
	}
	return nil, ResultOutput{Success: true}, nil
}
