package core

import (
	"context"
	"errors"

	"github.com/vovakirdan/wirechat-live/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeCanceled         = "canceled"
	ErrCodeInternal         = "internal"
)

var (
	ErrInvalidRoomID = errors.New("invalid room id")
	ErrBadRequest    = errors.New("bad request")
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

// ToCoreError maps an error returned by the core to a client-facing code.
func ToCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrInvalidRoomID):
		return coreError(ErrCodeBadRequest, "invalid room id")
	case errors.Is(err, ErrBadRequest):
		return coreError(ErrCodeBadRequest, "bad request")
	case errors.Is(err, store.ErrUnavailable):
		return coreError(ErrCodeStoreUnavailable, "message store unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return coreError(ErrCodeCanceled, "request canceled")
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}
