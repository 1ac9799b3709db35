package domain

import "strings"

// HistoryLimit is the number of turns a session keeps
const HistoryLimit = 10

// History is a bounded, ordered log of chat turns backed by a ring buffer.
// Appending beyond the limit drops the oldest turn.
type History struct {
	buf   []ChatTurn
	start int
	size  int
}

// NewHistory creates an empty history bounded to HistoryLimit turns
func NewHistory() *History {
	return &History{}
}

// HistoryOf builds a history from turns ordered oldest first.
// Only the most recent HistoryLimit turns are kept.
func HistoryOf(turns []ChatTurn) *History {
	h := NewHistory()
	for _, t := range turns {
		h.Append(t)
	}
	return h
}

// Append adds a turn at the tail, dropping from the head when full
func (h *History) Append(turn ChatTurn) {
	if h.buf == nil {
		h.buf = make([]ChatTurn, HistoryLimit)
	}
	if h.size < HistoryLimit {
		h.buf[(h.start+h.size)%HistoryLimit] = turn
		h.size++
		return
	}
	h.buf[h.start] = turn
	h.start = (h.start + 1) % HistoryLimit
}

// Len returns the number of turns held
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return h.size
}

// Turns returns a copy of the turns, oldest first
func (h *History) Turns() []ChatTurn {
	n := h.Len()
	out := make([]ChatTurn, n)
	for i := 0; i < n; i++ {
		out[i] = h.buf[(h.start+i)%HistoryLimit]
	}
	return out
}

// LastTurn returns the most recent turn
func (h *History) LastTurn() (ChatTurn, error) {
	n := h.Len()
	if n == 0 {
		return ChatTurn{}, ErrEmptyHistory
	}
	return h.buf[(h.start+n-1)%HistoryLimit], nil
}

// TurnsBeforeLast renders every turn except the final one, one per line.
// Returns "" when fewer than two turns are held.
func (h *History) TurnsBeforeLast() string {
	n := h.Len()
	if n < 2 {
		return ""
	}
	lines := make([]string, 0, n-1)
	for i := 0; i < n-1; i++ {
		lines = append(lines, h.buf[(h.start+i)%HistoryLimit].Render())
	}
	return strings.Join(lines, "\n")
}
