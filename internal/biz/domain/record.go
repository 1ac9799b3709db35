package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// TurnRecord is the persisted shape of a ChatTurn
type TurnRecord struct {
	UserType string `json:"UserType"`
	User     string `json:"User"`
	Content  string `json:"Content"`
}

// SessionRecord is the persisted and wire shape of a Session
type SessionRecord struct {
	SessionId   string       `json:"SessionId"`
	History     []TurnRecord `json:"History"`
	LastEventId string       `json:"LastEventId"`
	LastTagged  float64      `json:"LastTagged"` // unix seconds
}

// ToRecord converts the session into its persisted shape
func (s *Session) ToRecord() *SessionRecord {
	turns := s.History.Turns()
	rec := &SessionRecord{
		SessionId:   s.ID,
		History:     make([]TurnRecord, 0, len(turns)),
		LastEventId: s.LastEventID,
		LastTagged:  UnixSeconds(s.LastTagged),
	}
	for _, t := range turns {
		rec.History = append(rec.History, TurnRecord{
			UserType: string(t.Role),
			User:     t.Speaker,
			Content:  t.Content,
		})
	}
	return rec
}

// SessionFromRecord rebuilds a session, keeping the most recent HistoryLimit turns
func SessionFromRecord(rec *SessionRecord) (*Session, error) {
	s := &Session{
		ID:          rec.SessionId,
		History:     NewHistory(),
		LastEventID: rec.LastEventId,
		LastTagged:  FromUnixSeconds(rec.LastTagged),
	}
	for i, t := range rec.History {
		role := Role(t.UserType)
		if !role.Valid() {
			return nil, fmt.Errorf("history[%d]: unknown user type %q", i, t.UserType)
		}
		s.History.Append(ChatTurn{Role: role, Speaker: t.User, Content: t.Content})
	}
	return s, nil
}

// MarshalHistory encodes the history turns as a JSON array of TurnRecord
func MarshalHistory(h *History) ([]byte, error) {
	turns := h.Turns()
	recs := make([]TurnRecord, 0, len(turns))
	for _, t := range turns {
		recs = append(recs, TurnRecord{UserType: string(t.Role), User: t.Speaker, Content: t.Content})
	}
	return json.Marshal(recs)
}

// UnmarshalHistory decodes a JSON array of TurnRecord
func UnmarshalHistory(data []byte) (*History, error) {
	if len(data) == 0 {
		return NewHistory(), nil
	}
	var recs []TurnRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	s, err := SessionFromRecord(&SessionRecord{History: recs})
	if err != nil {
		return nil, err
	}
	return s.History, nil
}

// UnixSeconds converts t to fractional unix seconds
func UnixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// FromUnixSeconds converts fractional unix seconds to a time
func FromUnixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second))))
}
