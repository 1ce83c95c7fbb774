// Package apperr classifies invocation failures and maps them to exit codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies which stage of an invocation failed.
type Kind string

const (
	KindInternal  Kind = "internal"
	KindConfig    Kind = "config"
	KindInput     Kind = "input"
	KindTransport Kind = "transport"
	KindAPI       Kind = "api"
	KindParse     Kind = "parse"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindInternal when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindConfig:
		return 2
	case KindInput:
		return 3
	case KindTransport:
		return 4
	case KindAPI:
		return 5
	case KindParse:
		return 6
	default:
		return 1
	}
}
