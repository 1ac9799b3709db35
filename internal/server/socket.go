package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tessbot/slack-chat-bridge/internal/infra/slack"
	"github.com/tessbot/slack-chat-bridge/internal/service"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// SocketServer receives Slack events over a Socket Mode websocket
type SocketServer struct {
	client  *slack.Client
	decoder *slack.Decoder
	ingest  *service.IngestService
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewSocketServer creates a Socket Mode receiver
func NewSocketServer(client *slack.Client, ingest *service.IngestService, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketServer{
		client:  client,
		decoder: slack.NewDecoder(),
		ingest:  ingest,
		dialer:  websocket.DefaultDialer,
		logger:  logger.With("component", "socket"),
	}
}

// Run connects and reconnects until ctx is canceled
func (s *SocketServer) Run(ctx context.Context) error {
	delay := minReconnectDelay
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			// server asked us to reconnect
			delay = minReconnectDelay
			continue
		}
		s.logger.Warn("socket_disconnected", "error", err, "retry_in", delay.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// session runs one websocket connection. It returns nil when Slack sends a
// disconnect frame.
func (s *SocketServer) session(ctx context.Context) error {
	url, err := s.client.OpenSocketURL(ctx)
	if err != nil {
		return fmt.Errorf("open socket url: %w", err)
	}
	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial socket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("socket_connected")
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		env, in, err := s.decoder.DecodeEnvelope(raw)
		if env == nil {
			s.logger.Warn("socket_frame_invalid", "error", err)
			continue
		}
		if env.EnvelopeID != "" {
			if err := conn.WriteJSON(map[string]string{"envelope_id": env.EnvelopeID}); err != nil {
				return fmt.Errorf("ack envelope: %w", err)
			}
		}
		switch {
		case env.Type == "disconnect":
			s.logger.Info("socket_disconnect_requested")
			return nil
		case err != nil:
			s.logger.Warn("event_decode_failed", "envelope_id", env.EnvelopeID, "error", err)
		case in.Event != nil:
			s.ingest.HandleRaw(ctx, in.Event, env.Payload)
		}
	}
}
