package feishu

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
)

// Mention is a resolved mention placeholder in a message
type Mention struct {
	Key    string // placeholder in the text, e.g. @_user_1
	OpenID string
}

// Message is the part of a received message the bridge needs
type Message struct {
	EventID    string
	ChatID     string
	MsgType    string // text, post, image, ...
	Content    string // raw JSON content
	Mentions   []Mention
	SenderID   string
	SenderType string // user or app
}

// ToRawEvent converts the message into a platform-neutral raw event.
// Returns nil for message types that carry no text.
func (m *Message) ToRawEvent() *domain.RawEvent {
	raw := &domain.RawEvent{
		Platform:  domain.PlatformFeishu,
		ChannelID: m.ChatID,
		EventID:   m.EventID,
		SenderID:  m.SenderID,
	}
	if m.SenderType == "app" {
		raw.BotID = m.SenderID
	}

	var text string
	switch m.MsgType {
	case "text":
		text = parseTextContent(m.Content)
	case "post":
		text = parsePostContent(m.Content)
	default:
		return nil
	}
	text = replaceMentions(text, m.Mentions)
	raw.Text = &text
	return raw
}

// parseTextContent extracts text from a text message
func parseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return parsed.Text
}

// parsePostContent flattens a rich text message into plain text
func parsePostContent(content string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"` // for "at" tags
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var parts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				parts = append(parts, elem.Text)
			case "at":
				if elem.UserID != "" {
					parts = append(parts, elem.UserID)
				}
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, ""))
		}
	}
	return strings.Join(lines, "\n")
}

// replaceMentions rewrites placeholders (@_user_1) to <@open_id> tokens
func replaceMentions(text string, mentions []Mention) string {
	for _, m := range mentions {
		if m.Key == "" || m.OpenID == "" {
			continue
		}
		text = strings.ReplaceAll(text, m.Key, "<@"+m.OpenID+">")
	}
	return text
}

type webhookBody struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Encrypt   string `json:"encrypt"`
	Header    struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderID struct {
				OpenID string `json:"open_id"`
			} `json:"sender_id"`
			SenderType string `json:"sender_type"`
		} `json:"sender"`
		Message struct {
			MessageID   string `json:"message_id"`
			ChatID      string `json:"chat_id"`
			MessageType string `json:"message_type"`
			Content     string `json:"content"`
			Mentions    []struct {
				Key string `json:"key"`
				ID  struct {
					OpenID string `json:"open_id"`
				} `json:"id"`
			} `json:"mentions"`
		} `json:"message"`
	} `json:"event"`
}

// Decoder decodes Feishu event callback bodies
type Decoder struct{}

// NewDecoder creates a Feishu event decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses an event callback body (schema 2.0)
func (d *Decoder) Decode(body []byte) (*domain.Inbound, error) {
	var b webhookBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decode feishu event: %w: %v", domain.ErrMalformedEvent, err)
	}
	if b.Encrypt != "" {
		return nil, fmt.Errorf("encrypted feishu events are not supported: %w", domain.ErrMalformedEvent)
	}
	if b.Type == "url_verification" {
		return &domain.Inbound{Challenge: b.Challenge}, nil
	}
	if b.Header.EventType != "im.message.receive_v1" {
		return &domain.Inbound{}, nil
	}

	msg := &Message{
		EventID:    b.Header.EventID,
		ChatID:     b.Event.Message.ChatID,
		MsgType:    b.Event.Message.MessageType,
		Content:    b.Event.Message.Content,
		SenderID:   b.Event.Sender.SenderID.OpenID,
		SenderType: b.Event.Sender.SenderType,
	}
	for _, m := range b.Event.Message.Mentions {
		msg.Mentions = append(msg.Mentions, Mention{Key: m.Key, OpenID: m.ID.OpenID})
	}
	return &domain.Inbound{Event: msg.ToRawEvent()}, nil
}
