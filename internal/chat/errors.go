// Package chat holds the chat core: lobbies, the message deletion state
// machine and notification fan-out. Transports (HTTP, websocket) call into
// these services and translate the sentinel errors below.
package chat

import "errors"

var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidSender         = errors.New("invalid sender")
	ErrNotFound              = errors.New("not found")
	ErrDeletionWindowExpired = errors.New("deletion window expired")
	ErrPersistence           = errors.New("persistence failure")
)

// Code returns the wire code for err, or "" for nil.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidSender):
		return "invalid_sender"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDeletionWindowExpired):
		return "deletion_window_expired"
	default:
		return "persistence"
	}
}
