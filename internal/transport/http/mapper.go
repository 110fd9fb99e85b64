package http

import (
	"errors"
	"net/http"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-live/internal/core"
	"github.com/vovakirdan/wirechat-live/internal/proto"
)

var errRateLimited = errors.New("rate limit exceeded")

func errorResponse(err error) proto.ErrorResponse {
	ce := core.ToCoreError(err)
	return proto.ErrorResponse{Error: proto.Error{Code: ce.Code, Msg: ce.Message}}
}

func httpStatus(err error) int {
	switch core.ToCoreError(err).Code {
	case core.ErrCodeBadRequest:
		return http.StatusBadRequest
	case core.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case core.ErrCodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// closeStatus picks the close frame for a connection that ended with err.
// A nil reason means the close was expected.
func closeStatus(err error) (websocket.StatusCode, string, bool) {
	if errors.Is(err, errRateLimited) {
		return websocket.StatusPolicyViolation, errRateLimited.Error(), false
	}
	switch core.ToCoreError(err).Code {
	case core.ErrCodeStoreUnavailable:
		return websocket.StatusTryAgainLater, "store unavailable", false
	case core.ErrCodeCanceled:
		return websocket.StatusGoingAway, "closing", true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing", true
	case websocket.StatusMessageTooBig:
		return websocket.StatusMessageTooBig, "message too big", true
	}
	return websocket.StatusInternalError, "internal error", false
}
