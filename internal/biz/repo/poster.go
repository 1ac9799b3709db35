package repo

import "context"

// MessagePoster posts text to a channel on the messaging platform
type MessagePoster interface {
	PostMessage(ctx context.Context, channelID, text string) error
}
