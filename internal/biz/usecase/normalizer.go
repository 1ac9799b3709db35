package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
)

var (
	mentionPattern = regexp.MustCompile(`<@([A-Za-z0-9_]+)(?:\|[^>]*)?>`)
	spaceRun       = regexp.MustCompile(`[ \t]{2,}`)
)

// NormalizerConfig identifies the bot on the platform
type NormalizerConfig struct {
	BotUserID string // id used in <@...> mentions and as message author
	BotAppID  string // id the platform puts in bot_id for bot-authored messages
}

// EventNormalizer turns raw platform events into NormalizedEvents
type EventNormalizer struct {
	cfg NormalizerConfig
}

// NewEventNormalizer creates a new event normalizer
func NewEventNormalizer(cfg NormalizerConfig) *EventNormalizer {
	return &EventNormalizer{cfg: cfg}
}

// Normalize validates raw and derives sender, session, direct-address and
// self-reply flags. Returns domain.ErrMalformedEvent when a required field is missing.
func (n *EventNormalizer) Normalize(raw *domain.RawEvent) (*domain.NormalizedEvent, error) {
	if raw == nil {
		return nil, fmt.Errorf("nil event: %w", domain.ErrMalformedEvent)
	}
	sender := raw.SenderID
	if sender == "" {
		sender = raw.BotID
	}
	switch {
	case raw.ChannelID == "":
		return nil, fmt.Errorf("missing channel: %w", domain.ErrMalformedEvent)
	case raw.EventID == "":
		return nil, fmt.Errorf("missing event id: %w", domain.ErrMalformedEvent)
	case sender == "":
		return nil, fmt.Errorf("missing sender: %w", domain.ErrMalformedEvent)
	case raw.Text == nil:
		return nil, fmt.Errorf("missing text: %w", domain.ErrMalformedEvent)
	}

	text := *raw.Text
	return &domain.NormalizedEvent{
		SessionID:       raw.ChannelID,
		SenderID:        sender,
		RawText:         text,
		SanitizedText:   n.Sanitize(text),
		EventID:         raw.EventID,
		IsDirectAddress: n.IsDirectAddress(text),
		IsFromBotItself: n.isSelf(raw),
	}, nil
}

// IsDirectAddress reports whether text opens with the bot's mention token
func (n *EventNormalizer) IsDirectAddress(text string) bool {
	if n.cfg.BotUserID == "" {
		return false
	}
	trimmed := strings.TrimLeft(text, " \t\r\n")
	loc := mentionPattern.FindStringSubmatchIndex(trimmed)
	if loc == nil || loc[0] != 0 {
		return false
	}
	return trimmed[loc[2]:loc[3]] == n.cfg.BotUserID
}

// Sanitize strips the bot's own mention tokens, keeping mentions of other users
func (n *EventNormalizer) Sanitize(text string) string {
	out := mentionPattern.ReplaceAllStringFunc(text, func(tok string) string {
		if m := mentionPattern.FindStringSubmatch(tok); m != nil && m[1] == n.cfg.BotUserID {
			return ""
		}
		return tok
	})
	out = spaceRun.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

func (n *EventNormalizer) isSelf(raw *domain.RawEvent) bool {
	if n.cfg.BotUserID != "" && raw.SenderID == n.cfg.BotUserID {
		return true
	}
	return n.cfg.BotAppID != "" && raw.BotID == n.cfg.BotAppID
}
