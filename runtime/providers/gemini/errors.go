package gemini

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/deskpilot/deskpilot/runtime/providers/internal/streaming"
)

// Common errors for Gemini live sessions
var (
	// ErrAuthenticationFailed indicates an invalid or missing API key
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates too many requests
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrServiceUnavailable indicates a temporary service issue
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInvalidRequest indicates a malformed setup or client message
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPolicyViolation indicates the server closed the session over content policy
	ErrPolicyViolation = errors.New("policy violation")

	// ErrSetupFailed indicates the server did not acknowledge the setup message
	ErrSetupFailed = errors.New("setup not acknowledged")
)

// APIError is an error reported by the Live API, either as an HTTP status
// during the handshake or as a WebSocket close frame.
type APIError struct {
	Code    int
	Message string
	kind    error
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("gemini live api error (code %d): %s", e.Code, e.Message)
}

// Unwrap returns the classified sentinel, if any.
func (e *APIError) Unwrap() error {
	return e.kind
}

// IsRetryable returns true if reconnecting may succeed.
func (e *APIError) IsRetryable() bool {
	return errors.Is(e.kind, ErrRateLimitExceeded) || errors.Is(e.kind, ErrServiceUnavailable)
}

// classifyError maps transport failures onto APIError. Errors it does not
// recognize are returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var dialErr *streaming.DialError
	if errors.As(err, &dialErr) {
		return &APIError{Code: dialErr.StatusCode, Message: dialErr.Err.Error(), kind: classifyStatus(dialErr.StatusCode)}
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return &APIError{Code: closeErr.Code, Message: closeErr.Text, kind: classifyCloseCode(closeErr.Code)}
	}

	return err
}

func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthenticationFailed
	case http.StatusTooManyRequests:
		return ErrRateLimitExceeded
	case http.StatusBadRequest, http.StatusNotFound:
		return ErrInvalidRequest
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	default:
		return nil
	}
}

func classifyCloseCode(code int) error {
	switch code {
	case websocket.CloseInvalidFramePayloadData, websocket.CloseUnsupportedData:
		return ErrInvalidRequest
	case websocket.ClosePolicyViolation:
		return ErrPolicyViolation
	case websocket.CloseTryAgainLater, websocket.CloseInternalServerErr, websocket.CloseServiceRestart:
		return ErrServiceUnavailable
	default:
		return nil
	}
}
