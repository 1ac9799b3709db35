package domain

import "time"

// EngagementWindow is how long after a direct address the bot stays eligible
// for unprompted replies.
const EngagementWindow = 30 * time.Minute

// Session is the per-channel conversation state. It is read, mutated and
// written back as a whole.
type Session struct {
	ID          string
	History     *History
	LastEventID string    // dedup id of the most recently admitted event
	LastTagged  time.Time // last time the bot was directly addressed
}

// NewSession creates the state of a session that has never been seen
func NewSession(id string) *Session {
	return &Session{
		ID:         id,
		History:    NewHistory(),
		LastTagged: time.Unix(0, 0),
	}
}

// IsDuplicate reports whether eventID was the last admitted event
func (s *Session) IsDuplicate(eventID string) bool {
	return s.LastEventID != "" && s.LastEventID == eventID
}

// EngagementOpen reports whether now falls strictly inside the window after LastTagged
func (s *Session) EngagementOpen(now time.Time, window time.Duration) bool {
	return s.LastTagged.Add(window).After(now)
}

// Tag records a direct address at now
func (s *Session) Tag(now time.Time) {
	s.LastTagged = now
}

// Append adds a turn to the session history
func (s *Session) Append(turn ChatTurn) {
	if s.History == nil {
		s.History = NewHistory()
	}
	s.History.Append(turn)
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	c := *s
	c.History = HistoryOf(s.History.Turns())
	return &c
}
