package chat

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrSessionStopped = errors.New("room session is stopped")
	ErrSessionClosed  = errors.New("session is closed")
	ErrNoActiveRoom   = errors.New("no active room session")
)

// ValidationError is returned before any network call when the input can never succeed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError wraps a failed request to the chat API.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthorizationError means the user is not a member of the room.
type AuthorizationError struct {
	UserID uuid.UUID
	RoomID uuid.UUID
	Action string
}

func (e *AuthorizationError) Error() string {
	if e.RoomID == uuid.Nil {
		return fmt.Sprintf("user %s may not %s", e.UserID, e.Action)
	}
	return fmt.Sprintf("user %s may not %s room %s", e.UserID, e.Action, e.RoomID)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

func IsAuthorization(err error) bool {
	var a *AuthorizationError
	return errors.As(err, &a)
}
