package api

import "errors"

// Error taxonomy shared across the request pipeline. Handlers map these onto
// HTTP status codes in exactly one place.
var (
	// ErrAuthenticationRequired means no valid credential exists while
	// authentication is enabled. Surfaced as 401; never masked by fallback.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrRefreshFailed means the identity provider rejected the refresh
	// token. Terminal for the session; forces a full sign-out.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrBackendUnavailable covers network failures, timeouts and non-401
	// error statuses from the backend. Read paths recover via fallback data.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrMalformedResponse means the backend body could not be interpreted.
	// Treated like ErrBackendUnavailable on read paths.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// ValidationError reports invalid caller-supplied input. Surfaced as 400 with
// a structured {message, code} payload; never triggers fallback.
type ValidationError struct {
	Message string
	Code    string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError with a stable machine code.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Message: message, Code: code}
}
