package apierror

import (
	"net/http"
	"time"
)

// TimestampLayout renders a local date-time without a zone offset, matching
// the envelope contract consumed by existing clients.
const TimestampLayout = "2006-01-02T15:04:05"

// Envelope is the body of every error response. Field names and shape are
// part of the public contract; do not reorder or rename.
type Envelope struct {
	Status      int               `json:"status"`
	Message     string            `json:"message"`
	Timestamp   string            `json:"timestamp"`
	Path        string            `json:"path"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// New builds an envelope stamped with the current local time.
func New(status int, message, path string) *Envelope {
	return &Envelope{
		Status:    status,
		Message:   message,
		Timestamp: time.Now().Format(TimestampLayout),
		Path:      path,
	}
}

// WithFieldErrors attaches per-field validation messages.
func (e *Envelope) WithFieldErrors(fieldErrors map[string]string) *Envelope {
	if len(fieldErrors) > 0 {
		e.FieldErrors = fieldErrors
	}
	return e
}

// BadRequest builds a 400 envelope.
func BadRequest(message, path string) *Envelope {
	return New(http.StatusBadRequest, message, path)
}

// NotFound builds a 404 envelope.
func NotFound(message, path string) *Envelope {
	return New(http.StatusNotFound, message, path)
}

// Unauthorized builds a 401 envelope.
func Unauthorized(message, path string) *Envelope {
	return New(http.StatusUnauthorized, message, path)
}

// TooManyRequests builds a 429 envelope.
func TooManyRequests(message, path string) *Envelope {
	return New(http.StatusTooManyRequests, message, path)
}

// Internal builds a 500 envelope. The message should never leak internals;
// callers pass a generic one and log the real error.
func Internal(message, path string) *Envelope {
	return New(http.StatusInternalServerError, message, path)
}

// Validation builds a 400 envelope carrying per-field messages.
func Validation(path string, fieldErrors map[string]string) *Envelope {
	return BadRequest("Validation failed", path).WithFieldErrors(fieldErrors)
}
