package domain

// Platform names
const (
	PlatformSlack  = "slack"
	PlatformFeishu = "feishu"
)

// RawEvent is a platform event reduced to the fields admission needs.
// Mentions are expressed as <@id> tokens regardless of platform.
type RawEvent struct {
	Platform  string
	ChannelID string
	EventID   string
	SenderID  string
	BotID     string  // set when the platform marks the message as bot authored
	Text      *string // nil when the event carried no text field
}

// Inbound is the result of decoding a platform request body
type Inbound struct {
	Challenge string    // url verification handshake, no event
	Event     *RawEvent // nil when the body is acknowledged but carries no chat turn
}

// NormalizedEvent is the platform-neutral view of an inbound event
type NormalizedEvent struct {
	SessionID       string
	SenderID        string
	RawText         string
	SanitizedText   string
	EventID         string
	IsDirectAddress bool
	IsFromBotItself bool
}
