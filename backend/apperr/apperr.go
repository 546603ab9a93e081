package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation"
	KindForbidden        Kind = "forbidden"
	KindMethodNotAllowed Kind = "method_not_allowed"
	KindUpstream         Kind = "upstream"
	KindRateLimited      Kind = "rate_limited"
	KindInternal         Kind = "internal"
)

// Error carries a Kind for the HTTP boundary. Message is safe to show to clients;
// Err is the cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apperr.NotFound) match any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	Unauthenticated  = &Error{Kind: KindUnauthenticated}
	NotFound         = &Error{Kind: KindNotFound}
	Validation       = &Error{Kind: KindValidation}
	Forbidden        = &Error{Kind: KindForbidden}
	MethodNotAllowed = &Error{Kind: KindMethodNotAllowed}
	Upstream         = &Error{Kind: KindUpstream}
	RateLimited      = &Error{Kind: KindRateLimited}
)

func NewUnauthenticated(msg string) error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func NewNotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func NewForbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NewValidation reports a bad input on field. field may be empty.
func NewValidation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

// NewUpstream wraps a media service failure. msg is what the client sees.
func NewUpstream(msg string, cause error) error {
	return &Error{Kind: KindUpstream, Message: msg, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err. Internal errors never
// expose their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
