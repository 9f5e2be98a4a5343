// Package apperr classifies failures so callers can react to the kind of
// problem rather than to its message.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the category of a failure.
type Kind string

const (
	KindUnknown    Kind = "UNKNOWN"
	KindValidation Kind = "VALIDATION"
	KindAuth       Kind = "AUTH"
	KindService    Kind = "SERVICE"
	KindNetwork    Kind = "NETWORK"
)

// Error is a classified failure.
type Error struct {
	Kind      Kind      `json:"kind"`
	Op        string    `json:"op,omitempty"`
	Field     string    `json:"field,omitempty"`
	Message   string    `json:"message"`
	Status    int       `json:"status,omitempty"`
	Retryable bool      `json:"retryable"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s]: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidation reports bad local input. It never reaches the network.
func NewValidation(field, message string) *Error {
	return &Error{
		Kind:      KindValidation,
		Field:     field,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuth reports a 401 from a remote service.
func NewAuth(op string) *Error {
	return &Error{
		Kind:      KindAuth,
		Op:        op,
		Message:   "authentication required",
		Status:    401,
		Timestamp: time.Now().UTC(),
	}
}

// NewService reports a non-2xx response or a malformed payload.
func NewService(op string, status int, message string, err error) *Error {
	return &Error{
		Kind:      KindService,
		Op:        op,
		Message:   message,
		Status:    status,
		Retryable: status >= 500 || status == 0,
		Err:       err,
		Timestamp: time.Now().UTC(),
	}
}

// NewNetwork reports a request that never reached the server.
func NewNetwork(op string, err error) *Error {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Kind:      KindNetwork,
		Op:        op,
		Message:   msg,
		Retryable: true,
		Err:       err,
		Timestamp: time.Now().UTC(),
	}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of a classified error, or err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("not found")
