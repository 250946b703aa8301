package api

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is returned when a request never produced a usable response:
// connection failures, timeouts, and gateway-level statuses. Callers may retry.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError is returned when the request was rejected as malformed,
// either locally before sending or by the backend.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil && e.Message == "" {
		return "validation failed: " + e.Err.Error()
	}
	return "validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError is returned when the backend does not know the requested id.
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found: " + e.Message
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Message)
}

// AuthorizationError is returned for missing or expired credentials. The
// client has already run the auth-failure hook by the time callers see it.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return "unauthorized: " + e.Message
}

// ApplicationError is a backend-reported business failure.
type ApplicationError struct {
	Code    int
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application error %d: %s", e.Code, e.Message)
}

// IsRetryable reports whether err is worth retrying by the caller.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsUnauthorized reports whether err wraps an AuthorizationError.
func IsUnauthorized(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// Message extracts the user-facing message from any error in the taxonomy,
// falling back to err.Error().
func Message(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
		ae *AuthorizationError
		ap *ApplicationError
	)
	switch {
	case errors.As(err, &ve) && ve.Message != "":
		return ve.Message
	case errors.As(err, &nf) && nf.Message != "":
		return nf.Message
	case errors.As(err, &ae):
		return ae.Message
	case errors.As(err, &ap):
		return ap.Message
	}
	return err.Error()
}

// defaultMessage is used when the backend does not explain a failing status.
func defaultMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "bad request"
	case http.StatusUnauthorized:
		return "unauthorized, please log in"
	case http.StatusForbidden:
		return "access denied"
	case http.StatusNotFound:
		return "requested resource not found"
	case http.StatusRequestTimeout:
		return "request timed out"
	case http.StatusInternalServerError:
		return "internal server error"
	default:
		if text := http.StatusText(code); text != "" {
			return text
		}
		return "network connection failure"
	}
}

// classify maps a failing status (HTTP or envelope code) onto the taxonomy.
func classify(op string, code int, msg string) error {
	if msg == "" {
		msg = defaultMessage(code)
	}

	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationError{Message: msg}
	case http.StatusUnauthorized:
		return &AuthorizationError{Message: msg}
	case http.StatusNotFound:
		return &NotFoundError{Message: msg}
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &TransportError{Op: op, Timeout: code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout, Err: errors.New(msg)}
	default:
		return &ApplicationError{Code: code, Message: msg}
	}
}
