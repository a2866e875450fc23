package booking

import "fmt"

// NotFoundError means the booking (or its slot) does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ForbiddenError means the actor is authenticated but does not own the
// resource and carries no role that bypasses ownership.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return e.Reason }

// ValidationError means the request itself is malformed or violates an input
// rule, independent of any stored state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError means a compare-and-set lost a race: the row moved to another
// state between read and write. The operation may be retried after a re-read.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// BusinessLogicError means the stored state visibly forbids the operation,
// e.g. confirming a booking that is already cancelled.
type BusinessLogicError struct {
	Reason string
}

func (e *BusinessLogicError) Error() string { return e.Reason }
