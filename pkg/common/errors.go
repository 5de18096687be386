package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures
type ErrorKind string

const (
	KindShapeMismatch        ErrorKind = "ShapeMismatch"
	KindInvalidConfiguration ErrorKind = "InvalidConfiguration"
	KindInvalidInputLength   ErrorKind = "InvalidInputLength"
	KindInsufficientData     ErrorKind = "InsufficientData"
	KindUpstreamModelError   ErrorKind = "UpstreamModelError"
)

// Sentinels for errors.Is. Any *PipelineError of the same kind matches.
var (
	ErrShapeMismatch        = &PipelineError{Kind: KindShapeMismatch}
	ErrInvalidConfiguration = &PipelineError{Kind: KindInvalidConfiguration}
	ErrInvalidInputLength   = &PipelineError{Kind: KindInvalidInputLength}
	ErrInsufficientData     = &PipelineError{Kind: KindInsufficientData}
	ErrUpstreamModel        = &PipelineError{Kind: KindUpstreamModelError}
)

// PipelineError represents feature pipeline and classifier errors
type PipelineError struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Expected int       `json:"expected,omitempty"`
	Received int       `json:"received,omitempty"`
	Cause    error     `json:"-"`
}

func (e *PipelineError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches on kind so callers can compare against the package sentinels.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewPipelineError creates a new pipeline error
func NewPipelineError(kind ErrorKind, message string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// ShapeMismatch reports axis arrays of unequal length
func ShapeMismatch(format string, args ...any) *PipelineError {
	return NewPipelineError(KindShapeMismatch, fmt.Sprintf(format, args...), nil)
}

// InvalidConfiguration reports parameters that cannot produce a valid pipeline
func InvalidConfiguration(format string, args ...any) *PipelineError {
	return NewPipelineError(KindInvalidConfiguration, fmt.Sprintf(format, args...), nil)
}

// InvalidInputLength reports a single window whose length disagrees with the configuration
func InvalidInputLength(expected, received int) *PipelineError {
	return &PipelineError{
		Kind:     KindInvalidInputLength,
		Message:  fmt.Sprintf("expected %d values, got %d", expected, received),
		Expected: expected,
		Received: received,
	}
}

// InsufficientData reports a batch series shorter than one window
func InsufficientData(expected, received int) *PipelineError {
	return &PipelineError{
		Kind:     KindInsufficientData,
		Message:  fmt.Sprintf("series has %d samples, at least %d required for one window", received, expected),
		Expected: expected,
		Received: received,
	}
}

// UpstreamModel wraps a classifier failure or malformed classifier output
func UpstreamModel(message string, cause error) *PipelineError {
	return NewPipelineError(KindUpstreamModelError, message, cause)
}

// KindOf returns the kind of the first PipelineError in the chain
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsClientError reports whether err was caused by caller input rather than an
// internal or collaborator failure.
func IsClientError(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind != KindUpstreamModelError
}
