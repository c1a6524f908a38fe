package chat

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateSession   = errors.New("an active session already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionEnded       = errors.New("session has ended")
	ErrHistoryUnavailable = errors.New("session has no history")
	// ErrConcurrentTurn: message_count moved under us, another turn won.
	ErrConcurrentTurn = errors.New("concurrent turn on session")
)
