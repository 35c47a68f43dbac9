package core

import "errors"

// Error codes surfaced to clients.
const (
	ErrCodeRoomNotFound         = "room_not_found"
	ErrCodeBadRequest           = "bad_request"
	ErrCodeSessionAcquireFailed = "session_acquire_failed"
	ErrCodeEngineFatal          = "engine_fatal"
)

// ErrRoomNotFound is returned when a joiner targets a room that does not
// exist. Joiners never create rooms implicitly.
var ErrRoomNotFound = errors.New("room not found")

// CoreError wraps a code and human-readable message for client delivery.
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
