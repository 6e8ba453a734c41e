package connections

import "fmt"

// InvalidRequestError is a malformed or out-of-bounds request, detected
// before any broker call.
type InvalidRequestError struct {
	Message string
}

func (e *InvalidRequestError) Error() string { return e.Message }

func invalidf(format string, args ...any) error {
	return &InvalidRequestError{Message: fmt.Sprintf(format, args...)}
}

// UnavailableError means the broker integration is not configured.
type UnavailableError struct {
	Message string
	Hint    string
}

func (e *UnavailableError) Error() string {
	if e.Hint == "" {
		return e.Message
	}
	return e.Message + " (" + e.Hint + ")"
}

// ErrBrokerUnavailable is returned when no broker client is configured.
var ErrBrokerUnavailable = &UnavailableError{
	Message: "connection broker is not configured",
	Hint:    "set COMPOSIO_API_KEY or plugins.entries.composio.config.apiKey",
}

// UpstreamError wraps a failed broker call. Error returns the broker's message.
type UpstreamError struct {
	Op    string
	Cause error
}

func (e *UpstreamError) Error() string { return e.Cause.Error() }

func (e *UpstreamError) Unwrap() error { return e.Cause }
