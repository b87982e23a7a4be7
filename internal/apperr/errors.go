// Package apperr defines the caller-facing error kinds shared by the
// group-order, delivery and notification services.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindInvalidState       Kind = "invalid_state"
	KindDeadlinePassed     Kind = "deadline_passed"
	KindFull               Kind = "full"
	KindAlreadyJoined      Kind = "already_joined"
	KindNotParticipant     Kind = "not_participant"
	KindEmptyCart          Kind = "empty_cart"
	KindBelowMinimum       Kind = "below_minimum"
	KindCreatorCannotLeave Kind = "creator_cannot_leave"
	KindInvalidInput       Kind = "invalid_input"
)

// Error is a domain failure. Two errors match under errors.Is when their
// kinds are equal, so callers compare against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Message: "not authenticated"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrDeadlinePassed     = &Error{Kind: KindDeadlinePassed, Message: "order deadline has passed"}
	ErrFull               = &Error{Kind: KindFull, Message: "shared order is full"}
	ErrAlreadyJoined      = &Error{Kind: KindAlreadyJoined, Message: "already joined this order"}
	ErrNotParticipant     = &Error{Kind: KindNotParticipant, Message: "not a participant in this order"}
	ErrEmptyCart          = &Error{Kind: KindEmptyCart, Message: "cart is empty"}
	ErrBelowMinimum       = &Error{Kind: KindBelowMinimum, Message: "minimum order amount not reached"}
	ErrCreatorCannotLeave = &Error{Kind: KindCreatorCannotLeave, Message: "order creators cannot leave their own order"}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Message: "invalid input"}
)

// New builds an error of the given kind with a specific message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// BelowMinimumError reports the recomputed amount against the order minimum.
type BelowMinimumError struct {
	Current  float64
	Required float64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum order amount not reached: current %.2f, required %.2f", e.Current, e.Required)
}

func (e *BelowMinimumError) Is(target error) bool {
	return target == ErrBelowMinimum
}

// KindOf returns the domain kind carried by err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var bm *BelowMinimumError
	if errors.As(err, &bm) {
		return KindBelowMinimum
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindFull, KindAlreadyJoined, KindNotParticipant, KindCreatorCannotLeave:
		return http.StatusConflict
	case KindDeadlinePassed:
		return http.StatusGone
	case KindEmptyCart, KindBelowMinimum, KindInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
