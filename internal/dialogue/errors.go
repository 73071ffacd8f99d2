package dialogue

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned for an unknown or evicted session.
type ErrSessionNotFound struct {
	SessionID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("dialogue session %q not found", e.SessionID)
}

// Apology is the text shown to a learner whose session was lost.
func (e *ErrSessionNotFound) Apology() string {
	return "I seem to have lost track of our conversation. Could you ask again?"
}

// IsNotFound reports whether err is an ErrSessionNotFound.
func IsNotFound(err error) bool {
	var nf *ErrSessionNotFound
	return errors.As(err, &nf)
}

// ErrSessionActive is returned when a learner already holds a session.
type ErrSessionActive struct {
	UserID    string
	SessionID string
}

func (e *ErrSessionActive) Error() string {
	return fmt.Sprintf("user %q already has active dialogue session %q", e.UserID, e.SessionID)
}
