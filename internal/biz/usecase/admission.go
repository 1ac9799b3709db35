package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
)

// Action is the admission outcome for an event
type Action string

const (
	ActionDrop             Action = "drop"
	ActionAppendOnly       Action = "append_only"
	ActionAppendAndEnqueue Action = "append_and_enqueue"
)

// Decision reasons
const (
	ReasonSelfReply        = "self_reply"
	ReasonDuplicateEvent   = "duplicate_event"
	ReasonDirectAddress    = "direct_address"
	ReasonEngagementWindow = "engagement_window"
	ReasonNotSelected      = "not_selected"
)

// Decision is the result of admitting one event
type Decision struct {
	Action    Action
	Reason    string
	SessionID string
	Enqueued  bool // true when the reply request reached the queue (or was already there)
}

// Coin is the source of the random reply selection
type Coin interface {
	Flip() bool
}

// CoinFunc adapts a function to Coin
type CoinFunc func() bool

func (f CoinFunc) Flip() bool { return f() }

type fairCoin struct{}

func (fairCoin) Flip() bool { return rand.IntN(2) == 1 }

// Enqueuer hands reply requests to the dispatch queue
type Enqueuer interface {
	Enqueue(ctx context.Context, sessionID string, payload []byte, dedupID string) (bool, error)
}

// AdmissionConfig configures the admission decider
type AdmissionConfig struct {
	EngagementWindow   time.Duration
	ConditionalWrites  bool
	MaxConflictRetries int
}

// DefaultAdmissionConfig returns the default admission configuration
func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		EngagementWindow:   domain.EngagementWindow,
		MaxConflictRetries: 3,
	}
}

// AdmissionOption customizes an AdmissionUsecase
type AdmissionOption func(*AdmissionUsecase)

// WithClock overrides the time source
func WithClock(now func() time.Time) AdmissionOption {
	return func(uc *AdmissionUsecase) { uc.now = now }
}

// WithCoin overrides the random selection source
func WithCoin(c Coin) AdmissionOption {
	return func(uc *AdmissionUsecase) { uc.coin = c }
}

// AdmissionUsecase decides whether an event is dropped, recorded, or replied to
type AdmissionUsecase struct {
	sessionRepo repo.SessionRepo
	enqueuer    Enqueuer
	cfg         AdmissionConfig
	now         func() time.Time
	coin        Coin
}

// NewAdmissionUsecase creates a new admission usecase
func NewAdmissionUsecase(
	sessionRepo repo.SessionRepo,
	enqueuer Enqueuer,
	cfg AdmissionConfig,
	opts ...AdmissionOption,
) *AdmissionUsecase {
	if cfg.EngagementWindow <= 0 {
		cfg.EngagementWindow = domain.EngagementWindow
	}
	if cfg.MaxConflictRetries <= 0 {
		cfg.MaxConflictRetries = 3
	}
	uc := &AdmissionUsecase{
		sessionRepo: sessionRepo,
		enqueuer:    enqueuer,
		cfg:         cfg,
		now:         time.Now,
		coin:        fairCoin{},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Admit applies the admission rules to ev. payload is the original event body
// handed to the queue when a reply is requested.
func (uc *AdmissionUsecase) Admit(ctx context.Context, ev *domain.NormalizedEvent, payload []byte) (*Decision, error) {
	if ev.IsFromBotItself {
		return &Decision{Action: ActionDrop, Reason: ReasonSelfReply, SessionID: ev.SessionID}, nil
	}

	now := uc.now()
	randomEligible := uc.coin.Flip()

	var decision *Decision
	for attempt := 0; ; attempt++ {
		session, err := uc.sessionRepo.Get(ctx, ev.SessionID)
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
		exists := session != nil
		if !exists {
			session = domain.NewSession(ev.SessionID)
		}
		expected := session.LastEventID

		if session.IsDuplicate(ev.EventID) {
			return &Decision{Action: ActionDrop, Reason: ReasonDuplicateEvent, SessionID: ev.SessionID}, nil
		}

		decision = decide(session, ev, now, randomEligible, uc.cfg.EngagementWindow)
		apply(session, ev, now)

		if !uc.cfg.ConditionalWrites {
			if err := uc.sessionRepo.Put(ctx, session); err != nil {
				return nil, fmt.Errorf("save session: %w", err)
			}
			break
		}

		err = uc.sessionRepo.PutIfUnchanged(ctx, session, exists, expected)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= uc.cfg.MaxConflictRetries {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}

	if decision.Action != ActionAppendAndEnqueue {
		return decision, nil
	}
	if _, err := uc.enqueuer.Enqueue(ctx, ev.SessionID, payload, ev.EventID); err != nil {
		return decision, domain.NewCollaboratorError(domain.OpEnqueue, err)
	}
	decision.Enqueued = true
	return decision, nil
}

// decide reads the session as it was before this event touched it
func decide(s *domain.Session, ev *domain.NormalizedEvent, now time.Time, randomEligible bool, window time.Duration) *Decision {
	d := &Decision{SessionID: ev.SessionID}
	switch {
	case ev.IsDirectAddress:
		d.Action, d.Reason = ActionAppendAndEnqueue, ReasonDirectAddress
	case randomEligible && s.EngagementOpen(now, window):
		d.Action, d.Reason = ActionAppendAndEnqueue, ReasonEngagementWindow
	default:
		d.Action, d.Reason = ActionAppendOnly, ReasonNotSelected
	}
	return d
}

func apply(s *domain.Session, ev *domain.NormalizedEvent, now time.Time) {
	if ev.SanitizedText != "" {
		s.Append(domain.NewHumanTurn(ev.SenderID, ev.SanitizedText))
	}
	s.LastEventID = ev.EventID
	if ev.IsDirectAddress {
		s.Tag(now)
	}
}
