package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent is returned when a raw event lacks a required field
	ErrMalformedEvent = errors.New("malformed event")
	// ErrEmptyHistory is returned when a reply is requested for a session with no turns
	ErrEmptyHistory = errors.New("empty history")
	// ErrStoreUnavailable wraps session store read/write failures
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrConflict is returned by conditional writes when the stored record moved on
	ErrConflict = errors.New("session record conflict")
)

// Collaborator operations
const (
	OpGenerate = "generate"
	OpPost     = "post"
	OpEnqueue  = "enqueue"
)

// CollaboratorError reports a failure of an external collaborator
// (reply generation, posting, or queueing).
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError wraps err as a failure of op
func NewCollaboratorError(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}
