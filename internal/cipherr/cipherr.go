// Package cipherr defines the error taxonomy shared by every cipher in the engine.
//
// Errors are values: callers match them with errors.Is against the exported
// sentinels, or extract the Kind tag with KindOf to render a structured response.
package cipherr

import (
	"errors"
	"fmt"
)

// Kind tags the category of a cipher failure.
type Kind string

const (
	// KindValidation marks malformed or incompatible keys and parameters.
	KindValidation Kind = "validation"
	// KindRange marks integers outside the domain of an RSA key.
	KindRange Kind = "range"
	// KindFormat marks ciphertext whose shape does not match its key.
	KindFormat Kind = "format"
)

var (
	ErrValidation = errors.New("validation error")
	ErrRange      = errors.New("range error")
	ErrFormat     = errors.New("format error")
)

// Error is a descriptive cipher failure. Op names the operation that rejected
// its input.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return e.Op + ": " + e.Msg
}

// Unwrap returns the sentinel matching the error's Kind.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindValidation:
		return ErrValidation
	case KindRange:
		return ErrRange
	case KindFormat:
		return ErrFormat
	default:
		return nil
	}
}

// New builds an Error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Validationf(op, format string, args ...any) error {
	return New(KindValidation, op, format, args...)
}

func Rangef(op, format string, args ...any) error {
	return New(KindRange, op, format, args...)
}

func Formatf(op, format string, args ...any) error {
	return New(KindFormat, op, format, args...)
}

// KindOf reports the taxonomy tag carried by err, looking through wrapping.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation, true
	case errors.Is(err, ErrRange):
		return KindRange, true
	case errors.Is(err, ErrFormat):
		return KindFormat, true
	}
	return "", false
}
