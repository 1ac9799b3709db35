package slack

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
)

// Envelope is a Socket Mode frame
type Envelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type authorization struct {
	TeamID string `json:"team_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	IsBot  bool   `json:"is_bot,omitempty"`
}

// eventsAPIPayload is the outer Events API body, shared by HTTP and Socket Mode
type eventsAPIPayload struct {
	Type           string          `json:"type,omitempty"`
	Challenge      string          `json:"challenge,omitempty"`
	TeamID         string          `json:"team_id,omitempty"`
	EventID        string          `json:"event_id,omitempty"`
	EventTime      int64           `json:"event_time,omitempty"`
	Event          json.RawMessage `json:"event,omitempty"`
	Authorizations []authorization `json:"authorizations,omitempty"`
}

type messageEvent struct {
	Type        string  `json:"type,omitempty"`
	Subtype     string  `json:"subtype,omitempty"`
	User        string  `json:"user,omitempty"`
	Text        *string `json:"text,omitempty"`
	Channel     string  `json:"channel,omitempty"`
	ChannelType string  `json:"channel_type,omitempty"`
	TS          string  `json:"ts,omitempty"`
	ThreadTS    string  `json:"thread_ts,omitempty"`
	BotID       string  `json:"bot_id,omitempty"`
}

// subtypes that still carry a chat turn; edits, joins and deletions do not
var chatSubtypes = map[string]bool{
	"":                 true,
	"bot_message":      true,
	"thread_broadcast": true,
	"file_share":       true,
}

// Decoder decodes Slack Events API bodies
type Decoder struct{}

// NewDecoder creates a Slack event decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses an Events API request body.
// Returns an Inbound with a nil Event for event types that carry no chat turn.
func (d *Decoder) Decode(body []byte) (*domain.Inbound, error) {
	var p eventsAPIPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode slack event: %w: %v", domain.ErrMalformedEvent, err)
	}
	if p.Challenge != "" || p.Type == "url_verification" {
		return &domain.Inbound{Challenge: p.Challenge}, nil
	}
	if p.Type != "" && p.Type != "event_callback" {
		return &domain.Inbound{}, nil
	}
	if len(p.Event) == 0 {
		return nil, fmt.Errorf("missing event: %w", domain.ErrMalformedEvent)
	}

	var ev messageEvent
	if err := json.Unmarshal(p.Event, &ev); err != nil {
		return nil, fmt.Errorf("decode slack message: %w: %v", domain.ErrMalformedEvent, err)
	}
	// Mentions also arrive as app_mention under a separate event id; the
	// message copy is the one admitted.
	if ev.Type != "message" {
		return &domain.Inbound{}, nil
	}
	if !chatSubtypes[ev.Subtype] {
		return &domain.Inbound{}, nil
	}

	return &domain.Inbound{Event: &domain.RawEvent{
		Platform:  domain.PlatformSlack,
		ChannelID: strings.TrimSpace(ev.Channel),
		EventID:   strings.TrimSpace(p.EventID),
		SenderID:  strings.TrimSpace(ev.User),
		BotID:     strings.TrimSpace(ev.BotID),
		Text:      ev.Text,
	}}, nil
}

// DecodeEnvelope parses a Socket Mode frame. Only events_api envelopes
// carry an Events API payload; other frame types yield an empty Inbound.
func (d *Decoder) DecodeEnvelope(raw []byte) (*Envelope, *domain.Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("decode socket envelope: %w", err)
	}
	if env.Type != "events_api" || len(env.Payload) == 0 {
		return &env, &domain.Inbound{}, nil
	}
	in, err := d.Decode(env.Payload)
	return &env, in, err
}
