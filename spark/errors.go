package spark

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TransportError reports an HTTP exchange that could not be completed
// (DNS, connection, timeout, unreadable body). It is never retried.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("spark: %s %s: transport failure: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrorDetail is one entry of a service error's structured error list.
type ErrorDetail struct {
	Description string `json:"description"`
}

// ServiceError is an application error reported by the service. Callers can
// extract it with errors.As:
//
//	var serviceErr *spark.ServiceError
//	if errors.As(err, &serviceErr) && serviceErr.StatusCode == http.StatusNotFound { ... }
type ServiceError struct {
	Message    string        `json:"message"`
	Errors     []ErrorDetail `json:"errors"`
	TrackingID string        `json:"trackingId"`
	// StatusCode is the HTTP status of the response carrying the error.
	StatusCode int `json:"-"`
	// RetryAfter is the server's Retry-After hint on 429 responses. The
	// client never acts on it.
	RetryAfter time.Duration `json:"-"`
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "spark: service error (%d): %s", e.StatusCode, e.Message)
	for _, d := range e.Errors {
		if d.Description != "" && d.Description != e.Message {
			b.WriteString("; ")
			b.WriteString(d.Description)
		}
	}
	if e.TrackingID != "" {
		fmt.Fprintf(&b, " [trackingId=%s]", e.TrackingID)
	}
	return b.String()
}

// ParseError reports a response body that did not have the shape expected
// for the operation. Every missing or mistyped field is listed.
type ParseError struct {
	Kind    Kind
	Missing []string
	Invalid []string
	Err     error
}

func (e *ParseError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return fmt.Sprintf("spark: malformed %s response: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError reports a (kind, operation) pair with no entry in the
// field registry.
type ConfigurationError struct {
	Kind      Kind
	Operation Operation
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("spark: no %s field constraints for %s: %v", e.Operation, e.Kind, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InvalidStateError reports an operation attempted on an object that misses
// a precondition. It is always returned before any request is sent.
type InvalidStateError struct {
	Kind      Kind
	Operation string
	Reason    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("spark: cannot %s %s: %s", e.Operation, e.Kind, e.Reason)
}

func invalidState(kind Kind, op, reason string) error {
	return &InvalidStateError{Kind: kind, Operation: op, Reason: reason}
}

// IsNotFound reports whether err is a service error for a missing record.
func IsNotFound(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.StatusCode == http.StatusNotFound
	}
	return false
}
