// Package apperr classifies errors raised by the services so the HTTP layer
// can translate them into structured responses.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a class of application error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindDomain
	KindThrottled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindDomain:
		return "domain"
	case KindThrottled:
		return "throttled"
	default:
		return "internal"
	}
}

// Error is an application error with a kind and a message safe to show to
// API clients. Field is set for validation errors only. Fields holds every
// message when a validation error covers several fields; Field and Message
// then repeat the first one.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if len(e.Fields) > 1 {
		keys := sortedKeys(e.Fields)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
		}
		return strings.Join(parts, "; ")
	}
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports bad input for a single field.
func Validation(field, message string) error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Validationf is Validation with a formatted message.
func Validationf(field, format string, args ...any) error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Fields collects validation messages so every bad field is reported at
// once.
type Fields map[string][]string

func (f Fields) Add(field, message string) {
	f[field] = append(f[field], message)
}

func (f Fields) Addf(field, format string, args ...any) {
	f.Add(field, fmt.Sprintf(format, args...))
}

// Err returns nil when nothing was added.
func (f Fields) Err() error {
	if len(f) == 0 {
		return nil
	}
	first := sortedKeys(f)[0]
	fields := make(map[string][]string, len(f))
	for k, v := range f {
		fields[k] = append([]string(nil), v...)
	}
	return &Error{Kind: KindValidation, Field: first, Message: f[first][0], Fields: fields}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func Unauthorized(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict wraps a storage level conflict such as a unique violation.
func Conflict(message string, err error) error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// Domain reports a business rule violation.
func Domain(format string, args ...any) error {
	return &Error{Kind: KindDomain, Message: fmt.Sprintf(format, args...)}
}

// Throttled reports that a caller exceeded a rate limit.
func Throttled(message string) error {
	return &Error{Kind: KindThrottled, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
