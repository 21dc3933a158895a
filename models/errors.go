package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	// ErrCodeLaunchFailed means no browser launch variant could be started.
	ErrCodeLaunchFailed = "LAUNCH_FAILED"

	// ErrCodeNavigationTimeout means the target page did not load in time.
	ErrCodeNavigationTimeout = "NAVIGATION_TIMEOUT"

	// ErrCodeNavigation means the navigation itself failed (DNS, TLS, ...).
	ErrCodeNavigation = "NAVIGATION_FAILED"

	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// Details is the human readable detail exposed in API error bodies.
func (e *ScrapeError) Details() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}
