package netutil

import (
	"errors"
	"fmt"
)

// HTTPError is returned for any non-2xx response FetchJSON receives and was
// not claimed by a custom error handler. Message is always the HTTP status
// text, never response body content, so server error pages can't leak
// through to logs or error strings.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError constructs an HTTPError.
func NewHTTPError(statusCode int, url, message string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message, URL: url}
}

// IsHTTPError reports whether err is (or wraps) an *HTTPError with the given
// status code. statusCode 0 matches any HTTPError regardless of code.
func IsHTTPError(err error, statusCode int) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return statusCode == 0 || httpErr.StatusCode == statusCode
}
