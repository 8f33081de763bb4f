// Package apperr defines the typed errors services raise for invalid input.
// Handlers map them to HTTP status codes; everything else becomes a 500.
//
// Not-found on a state-machine transition is NOT an error: those operations
// return a nil entity and the handler answers 404. These types are reserved
// for structurally invalid requests caught during validation.
package apperr

import "fmt"

// NotFoundError: a referenced entity does not exist (maps to 404).
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for an entity reference.
func NotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// BadRequestError: malformed or missing input (maps to 400).
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string { return e.Reason }

// BadRequest builds a BadRequestError with a reason.
func BadRequest(reason string) *BadRequestError {
	return &BadRequestError{Reason: reason}
}

// ConflictError: a uniqueness constraint was violated (maps to 409).
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// Conflict builds a ConflictError with a reason.
func Conflict(reason string) *ConflictError {
	return &ConflictError{Reason: reason}
}

// InsufficientRightsError: a role or membership precondition failed (maps to 403).
type InsufficientRightsError struct {
	Reason string
}

func (e *InsufficientRightsError) Error() string { return e.Reason }

// InsufficientRights builds an InsufficientRightsError with a reason.
func InsufficientRights(reason string) *InsufficientRightsError {
	return &InsufficientRightsError{Reason: reason}
}
