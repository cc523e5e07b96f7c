package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Authentication errors
	ErrCodeAuthRequired = "AUTH_REQUIRED"
	ErrCodeAuthExpired  = "AUTH_EXPIRED"

	// Authorization errors
	ErrCodeForbidden = "FORBIDDEN"

	// Validation errors
	ErrCodeValidation     = "VALIDATION"
	ErrCodeReminderInPast = "REMINDER_IN_PAST"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"

	// Service errors
	ErrCodeServerError = "SERVER_ERROR"
	ErrCodeTransport   = "TRANSPORT_FAILURE"
	ErrCodeCancelled   = "CANCELLED"
)

// APIError is the client-side classification of a failed operation.
// Status is zero for errors that never reached the transport.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError.
func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// Predefined errors
var (
	ErrAuthRequired   = &APIError{Code: ErrCodeAuthRequired, Message: "authentication required", Status: http.StatusUnauthorized}
	ErrForbidden      = &APIError{Code: ErrCodeForbidden, Message: "access denied", Status: http.StatusForbidden}
	ErrNotFound       = &APIError{Code: ErrCodeNotFound, Message: "resource not found", Status: http.StatusNotFound}
	ErrCancelled      = &APIError{Code: ErrCodeCancelled, Message: "request cancelled"}
	ErrReminderInPast = &APIError{Code: ErrCodeReminderInPast, Message: "reminder time is in the past"}
)

// serverBody is the error envelope servers put in non-2xx responses.
type serverBody struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	NeedsRefresh bool   `json:"needsRefresh"`
}

// NeedsRefresh reports whether a 403 body asks for a token refresh.
func NeedsRefresh(status int, body []byte) bool {
	if status != http.StatusForbidden {
		return false
	}
	var sb serverBody
	if err := json.Unmarshal(body, &sb); err != nil {
		return false
	}
	return sb.NeedsRefresh
}

// FromResponse classifies a non-2xx response into the error taxonomy.
// The server's {error} message is carried through when present;
// otherwise the HTTP status text is used.
func FromResponse(status int, body []byte) *APIError {
	message := http.StatusText(status)
	var sb serverBody
	if err := json.Unmarshal(body, &sb); err == nil {
		if sb.Error != "" {
			message = sb.Error
		} else if sb.Message != "" {
			message = sb.Message
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return &APIError{Code: ErrCodeAuthRequired, Message: message, Status: status}
	case status == http.StatusForbidden:
		return &APIError{Code: ErrCodeForbidden, Message: message, Status: status}
	case status == http.StatusNotFound:
		return &APIError{Code: ErrCodeNotFound, Message: message, Status: status}
	case status == http.StatusConflict:
		return &APIError{Code: ErrCodeConflict, Message: message, Status: status}
	default:
		return &APIError{Code: ErrCodeServerError, Message: message, Status: status}
	}
}

// Transport wraps a network-level failure (connection refused, bad
// JSON body) into the retryable transport kind.
func Transport(err error) *APIError {
	return &APIError{Code: ErrCodeTransport, Message: fmt.Sprintf("request failed: %v", err)}
}

// Validation builds a local pre-flight error that never reaches the
// transport.
func Validation(message string) *APIError {
	return &APIError{Code: ErrCodeValidation, Message: message}
}

// IsKind reports whether err is an APIError with the given code.
func IsKind(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsAuthRequired reports whether err means the session is gone.
func IsAuthRequired(err error) bool { return IsKind(err, ErrCodeAuthRequired) }

// IsCancelled reports whether err is the client's own abort; callers
// treat it as non-fatal and keep it off the error surface.
func IsCancelled(err error) bool { return IsKind(err, ErrCodeCancelled) }

// IsForbidden reports whether err is a final 403.
func IsForbidden(err error) bool { return IsKind(err, ErrCodeForbidden) }

// IsNotFound reports whether err is a stale-reference 404.
func IsNotFound(err error) bool { return IsKind(err, ErrCodeNotFound) }
