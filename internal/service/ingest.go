package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/usecase"
	"github.com/tessbot/slack-chat-bridge/internal/logutil"
)

// EventDecoder turns a platform request body into an Inbound
type EventDecoder interface {
	Decode(body []byte) (*domain.Inbound, error)
}

// Ack is what the platform gets back for a delivered event
type Ack struct {
	Challenge string // echoed for url verification
}

// IngestService runs inbound events through normalization and admission.
// It always acknowledges: failures are logged, never returned to the platform.
type IngestService struct {
	decoder    EventDecoder
	normalizer *usecase.EventNormalizer
	admission  *usecase.AdmissionUsecase
	logger     *slog.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	decoder EventDecoder,
	normalizer *usecase.EventNormalizer,
	admission *usecase.AdmissionUsecase,
	logger *slog.Logger,
) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		decoder:    decoder,
		normalizer: normalizer,
		admission:  admission,
		logger:     logger.With("component", "ingest"),
	}
}

// HandleEvent decodes and admits one webhook body
func (s *IngestService) HandleEvent(ctx context.Context, body []byte) *Ack {
	in, err := s.decoder.Decode(body)
	if err != nil {
		s.logger.Warn("event_decode_failed", "error", err, "body", logutil.Truncate(string(body), 200))
		return &Ack{}
	}
	if in.Challenge != "" {
		s.logger.Info("url_verification")
		return &Ack{Challenge: in.Challenge}
	}
	if in.Event == nil {
		return &Ack{}
	}
	s.HandleRaw(ctx, in.Event, body)
	return &Ack{}
}

// HandleRaw admits an already decoded event. payload is queued as the original event body.
func (s *IngestService) HandleRaw(ctx context.Context, raw *domain.RawEvent, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event_panic", "panic", fmt.Sprint(r))
		}
	}()

	ev, err := s.normalizer.Normalize(raw)
	if err != nil {
		s.logger.Warn("event_malformed", "error", err)
		return
	}
	logger := s.logger.With("session_id", ev.SessionID, "event_id", ev.EventID)

	decision, err := s.admission.Admit(ctx, ev, payload)
	if err != nil {
		var collab *domain.CollaboratorError
		switch {
		case errors.Is(err, domain.ErrStoreUnavailable):
			logger.Error("session_store_unavailable", "error", err)
		case errors.As(err, &collab):
			logger.Error("enqueue_failed", "op", collab.Op, "error", err, "reason", decision.Reason)
		default:
			logger.Error("admission_failed", "error", err)
		}
		return
	}

	logger.Info("event_admitted",
		"action", string(decision.Action),
		"reason", decision.Reason,
		"enqueued", decision.Enqueued,
		"sender", ev.SenderID,
		"text", logutil.Truncate(ev.SanitizedText, 80),
	)
}
