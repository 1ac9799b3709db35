package feishu

import (
	"context"
	"encoding/json"
	"log/slog"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
)

// EventHandler receives events from the long connection. payload is the
// JSON event as delivered, kept for the dispatch queue.
type EventHandler func(ctx context.Context, raw *domain.RawEvent, payload []byte)

// Listen connects to Feishu over the long connection and blocks, handing
// every text message to handler. It returns when ctx is done or the
// connection fails permanently.
func (c *Client) Listen(ctx context.Context, handler EventHandler, logger *slog.Logger) error {
	// Must return quickly so the SDK can ACK; Feishu redelivers on timeout
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			msg := messageFromEvent(event)
			if msg == nil {
				return nil
			}
			raw := msg.ToRawEvent()
			if raw == nil {
				logger.Debug("feishu_message_ignored", "type", msg.MsgType, "chat_id", msg.ChatID)
				return nil
			}
			payload, _ := json.Marshal(event)
			go handler(context.WithoutCancel(ctx), raw, payload)
			return nil
		})

	wsCli := larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	logger.Info("feishu_ws_connecting")
	return wsCli.Start(ctx)
}

func messageFromEvent(event *larkim.P2MessageReceiveV1) *Message {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}
	rawMsg := event.Event.Message

	msg := &Message{
		ChatID:  deref(rawMsg.ChatId),
		MsgType: deref(rawMsg.MessageType),
		Content: deref(rawMsg.Content),
	}
	if event.EventV2Base != nil && event.EventV2Base.Header != nil {
		msg.EventID = event.EventV2Base.Header.EventID
	}
	if msg.EventID == "" {
		msg.EventID = deref(rawMsg.MessageId)
	}

	if sender := event.Event.Sender; sender != nil {
		if sender.SenderId != nil {
			msg.SenderID = deref(sender.SenderId.OpenId)
		}
		msg.SenderType = deref(sender.SenderType)
	}

	for _, mention := range rawMsg.Mentions {
		if mention == nil || mention.Id == nil {
			continue
		}
		msg.Mentions = append(msg.Mentions, Mention{Key: deref(mention.Key), OpenID: deref(mention.Id.OpenId)})
	}
	return msg
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
