// Package apperr defines the recoverable error types returned by the
// registries, intake and ledger. None of them panic; callers inspect them
// with errors.As or classify them with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport layers
type Kind string

const (
	KindValidation   Kind = "validation"
	KindInsufficient Kind = "insufficient_availability"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindState        Kind = "state_transition"
	KindInvariant    Kind = "invariant_violation"
	KindInternal     Kind = "internal"
)

// ValidationError reports malformed input and names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientAvailabilityError reports that capacity is lower than requested
type InsufficientAvailabilityError struct {
	ID        string
	Requested int
	Available int
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("insufficient availability on %s: requested %d, available %d", e.ID, e.Requested, e.Available)
}

// ConflictError reports an optimistic concurrency failure or lock timeout
type ConflictError struct {
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.ID, e.Reason)
}

// NotFoundError reports an unknown id
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// StateTransitionError reports an illegal lifecycle transition
type StateTransitionError struct {
	ID   string
	From string
	To   string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal transition on %s: %s -> %s", e.ID, e.From, e.To)
}

// InvariantViolation means the ledger found an entity in an impossible state.
// The entity has been quarantined.
type InvariantViolation struct {
	ID     string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated on %s: %s", e.ID, e.Detail)
}

// Validation is shorthand for a ValidationError
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound is shorthand for a NotFoundError
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// Transition is shorthand for a StateTransitionError
func Transition(id string, from, to any) error {
	return &StateTransitionError{ID: id, From: fmt.Sprint(from), To: fmt.Sprint(to)}
}

// Conflict is shorthand for a ConflictError
func Conflict(id, reason string) error {
	return &ConflictError{ID: id, Reason: reason}
}

// KindOf classifies err. Unknown errors are KindInternal; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var (
		v  *ValidationError
		ia *InsufficientAvailabilityError
		c  *ConflictError
		nf *NotFoundError
		st *StateTransitionError
		iv *InvariantViolation
	)
	switch {
	case errors.As(err, &v):
		return KindValidation
	case errors.As(err, &ia):
		return KindInsufficient
	case errors.As(err, &c):
		return KindConflict
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &st):
		return KindState
	case errors.As(err, &iv):
		return KindInvariant
	}
	return KindInternal
}
