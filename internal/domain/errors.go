package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent error conditions in the ylog domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrInvalidRecord is returned when a contact fails validation.
	ErrInvalidRecord = errors.New("ylog: invalid record")

	// ErrSinkUnavailable is returned when the logsheet sink cannot be created or written.
	ErrSinkUnavailable = errors.New("ylog: sink unavailable")

	// ErrMalformedMessage is returned when an inbound relay payload cannot be decoded.
	ErrMalformedMessage = errors.New("ylog: malformed message")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("ylog: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("ylog: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("ylog: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("ylog: invalid configuration")

	// ErrInvalidTransition is returned when a connection state change is not allowed.
	ErrInvalidTransition = errors.New("ylog: invalid connection state transition")
)

// ErrorKind is a coarse-grained categorization for errors.
type ErrorKind string

const (
	KindInvalidRecord    ErrorKind = "invalid_record"
	KindSinkUnavailable  ErrorKind = "sink_unavailable"
	KindMalformedMessage ErrorKind = "malformed_message"
)

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op   string
	Kind ErrorKind
	Path string // Optional: relevant file path
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is match an OpError against the sentinel for its kind.
func (e *OpError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindInvalidRecord:
		return target == ErrInvalidRecord
	case KindSinkUnavailable:
		return target == ErrSinkUnavailable
	case KindMalformedMessage:
		return target == ErrMalformedMessage
	}
	return false
}

// IsKind helps callers classify errors without depending on infra packages.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	var ie *InvalidRecordError
	if kind == KindInvalidRecord && errors.As(err, &ie) {
		return true
	}
	return false
}

// SinkUnavailable wraps err as a sink failure for the given operation and path.
// Errors that already carry the sink kind are returned unchanged.
func SinkUnavailable(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSinkUnavailable) {
		return err
	}
	return &OpError{Op: op, Kind: KindSinkUnavailable, Path: path, Err: err}
}

// Malformed wraps err as a malformed relay message.
func Malformed(op string, err error) error {
	return &OpError{Op: op, Kind: KindMalformedMessage, Err: err}
}

// Violation names one contact field that failed validation.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// InvalidRecordError lists every violated field of a rejected contact.
type InvalidRecordError struct {
	Violations []Violation
}

func (e *InvalidRecordError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

// Is reports whether target is ErrInvalidRecord.
func (e *InvalidRecordError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// HasField reports whether field is among the violations.
func (e *InvalidRecordError) HasField(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}
