package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the coordination core. None of them is fatal.
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrUnknownRecipient = errors.New("unknown recipient")
	ErrNotAMember       = errors.New("not a member")
	ErrRateLimited      = errors.New("rate limited")
	ErrOverloaded       = errors.New("overloaded")
	ErrNotFound         = errors.New("not found")
)

// OpError attaches the failing operation and a detail to an error kind.
type OpError struct {
	Op     string
	Kind   error
	Detail string
}

func (e *OpError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *OpError) Unwrap() error {
	return e.Kind
}

func NewOpError(op string, kind error, detail string) *OpError {
	return &OpError{Op: op, Kind: kind, Detail: detail}
}

func Malformed(op, detail string) *OpError {
	return NewOpError(op, ErrMalformedRequest, detail)
}

// Code maps an error to the short code sent in error acks.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, ErrUnknownRecipient):
		return "unknown_recipient"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrOverloaded):
		return "overloaded"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
