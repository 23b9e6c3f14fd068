package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures that are reported back to one connection
type ErrorKind int

const (
	// KindProtocol is a malformed frame or unknown message type
	KindProtocol ErrorKind = iota
	// KindAuth is a missing, invalid, expired or blocked credential
	KindAuth
	// KindAuthorization is an action that needs room membership or full access
	KindAuthorization
	// KindNotFound is a reference to a room that does not exist
	KindNotFound
	// KindDependency is a failed identity, membership or history call
	KindDependency
)

// String returns the kind name used in logs and metrics
func (k ErrorKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindAuth:
		return "auth"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Client-visible error messages
const (
	MsgTokenRequired        = "Token required"
	MsgAuthenticationFailed = "Authentication failed"
	MsgUserNotFound         = "User not found"
	MsgUserBlocked          = "User is blocked"
	MsgAlreadyAuthenticated = "Already authenticated"
	MsgNotAuthenticated     = "Not authenticated"
	MsgEventNotFound        = "Event not found"
	MsgNotInRoom            = "Not in this event room"
	MsgMustRegister         = "You must register for this event to send messages"
	MsgJoinFailed           = "Failed to join event"
	MsgSendFailed           = "Failed to send message"
	MsgInvalidFormat        = "Invalid message format"
	MsgUnknownType          = "Unknown message type"
	MsgInvalidContent       = "Invalid message content"
	MsgInternalError        = "Internal server error"
)

// ErrEventNotFound is returned by membership and event lookups for unknown ids
var ErrEventNotFound = errors.New("event not found")

// ErrInvalidContent is returned by the sanitizer for empty or oversized bodies
var ErrInvalidContent = errors.New("invalid message content")

// FrameError is converted into an error frame for the originating connection.
// It never closes the connection.
type FrameError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

func newFrameError(kind ErrorKind, message string, err error) *FrameError {
	return &FrameError{Kind: kind, Message: message, Err: err}
}

// asFrameError wraps anything that is not already a FrameError as a dependency failure
func asFrameError(err error) *FrameError {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe
	}
	return newFrameError(KindDependency, MsgInternalError, err)
}
