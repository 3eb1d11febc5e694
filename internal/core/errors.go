package core

import "errors"

// Error codes carried on error display events.
const (
	ErrCodeInvalidIP       = "invalid_ip"
	ErrCodeInvalidPort     = "invalid_port"
	ErrCodeChannelNotFound = "channel_not_found"
	ErrCodeChannelExists   = "channel_exists"
	ErrCodeNotConnected    = "not_connected"
	ErrCodeNoActiveChannel = "no_active_channel"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeTransport       = "transport_error"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelExists   = errors.New("channel already exists")
	ErrNotConnected    = errors.New("channel not connected")
	ErrNoActiveChannel = errors.New("no active channel")
	ErrBadRequest      = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
