package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All components MUST use these constants instead of hardcoded strings.
const (
	// Permission (403) - fatal to session start, one code per permission kind
	// so the presentation layer can show a distinct reason for each.
	ErrCodePermissionForeground    ErrorCode = "permission_foreground_location_denied"
	ErrCodePermissionBackground    ErrorCode = "permission_background_location_denied"
	ErrCodePermissionNotifications ErrorCode = "permission_notifications_denied"

	// Validation (400)
	ErrCodeValidationInvalidLat   ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon   ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationInvalidZone  ErrorCode = "validation_invalid_zone"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationDuplicateID  ErrorCode = "validation_duplicate_zone_id"
	// ErrCodeValidationInvalidValue is the fallback for failures with no
	// more specific code (range bounds, format rules, malformed numbers).
	ErrCodeValidationInvalidValue ErrorCode = "validation_invalid_value"

	// Auth (401) - operator key on mutating API routes
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Not Found (404)
	ErrCodeNotFoundZone ErrorCode = "not_found_zone"
	// ErrCodeUnknownZone marks a region signal referencing an identifier
	// absent from the catalog. The signal is dropped, never surfaced.
	ErrCodeUnknownZone ErrorCode = "unknown_zone_identifier"

	// Conflict (409) - session lifecycle
	ErrCodeConflictSessionActive  ErrorCode = "conflict_session_already_active"
	ErrCodeConflictSessionStopped ErrorCode = "conflict_session_not_active"
	ErrCodeConflictSessionBusy    ErrorCode = "conflict_session_transitioning"

	// Recovered-locally failures. These are logged and absorbed inside the
	// reconciliation path; they reach the API only from direct collaborator
	// queries (e.g. GET /v1/position).
	ErrCodePositioningUnavailable ErrorCode = "positioning_unavailable"
	ErrCodePersistenceFailure     ErrorCode = "persistence_failure"

	// Internal/Upstream (500/502/503)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamBroker      ErrorCode = "upstream_broker_unavailable"
	ErrCodeUpstreamPushGateway ErrorCode = "upstream_push_gateway_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"), s == string(ErrCodeUnknownZone):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case s == string(ErrCodePositioningUnavailable):
		return http.StatusServiceUnavailable // 503
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"), s == string(ErrCodePersistenceFailure):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// NewPermissionDenied builds the denial error for one permission scope.
// Each scope maps to its own code and user-displayable message so the caller
// can tell the user exactly which grant is missing.
func NewPermissionDenied(scope PermissionScope, err error) *AppError {
	switch scope {
	case PermissionForeground:
		return NewAppError(ErrCodePermissionForeground,
			"location access while using the app was denied", err)
	case PermissionBackground:
		return NewAppError(ErrCodePermissionBackground,
			"background location access was denied", err)
	case PermissionNotifications:
		return NewAppError(ErrCodePermissionNotifications,
			"notification permission was denied", err)
	default:
		return NewAppError(ErrCodeInternalUnexpected,
			fmt.Sprintf("permission denied for unknown scope %q", scope), err)
	}
}

// IsPermissionDenied reports whether the error carries one of the permission
// denial codes.
func IsPermissionDenied(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	return strings.HasPrefix(string(appErr.Code), "permission_")
}

// AsAppError unwraps err looking for an *AppError in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
