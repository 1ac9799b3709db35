package repo

import "context"

// ReplyRequest is the input to reply generation
type ReplyRequest struct {
	SessionID    string
	PriorHistory string // rendered turns before the current one
	Current      string // rendered current turn
	BotName      string
}

// ReplyGenerator produces the bot's reply text
type ReplyGenerator interface {
	Generate(ctx context.Context, req ReplyRequest) (string, error)
}
