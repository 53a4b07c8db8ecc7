// Package tinychat - errors.go
// Defines chat-specific errors.

package tinychat

import "errors"

var (
	ErrBusy         = errors.New("a request is already in flight")
	ErrBlankMessage = errors.New("message is empty")
	ErrNoAPIKey     = errors.New("no API key configured")
	ErrStorage      = errors.New("storage unavailable")
	ErrBadRequest   = errors.New("request must carry a message with a session id, or a legacy messages list")
)
