package library

import (
	"errors"
	"fmt"
)

// Failure kinds. Every unsuccessful Result wraps exactly one of these,
// except a missing loan which is both a state and a lookup failure.
var (
	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced book or member does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the member already holds the book.
	ErrConflict = errors.New("conflict")

	// ErrState is returned when the current state does not allow the operation.
	ErrState = errors.New("invalid state")
)

// ErrNoSuchLoan is returned by ReturnBook when the pair has no active loan.
var ErrNoSuchLoan = fmt.Errorf("%w: no active loan (%w)", ErrState, ErrNotFound)

// Result is what every mutating catalog operation hands back to the caller.
// The shell only prints Message; Err is there for errors.Is checks.
type Result struct {
	OK      bool
	Message string
	ID      int64
	Err     error
}

func succeeded(id int64, message string) Result {
	return Result{OK: true, Message: message, ID: id}
}

func failed(err error, message string) Result {
	return Result{Message: message, Err: err}
}

// outcome maps a result onto the metric label used for it.
func outcome(r Result) string {
	switch {
	case r.OK:
		return "success"
	case errors.Is(r.Err, ErrValidation):
		return "validation"
	case errors.Is(r.Err, ErrConflict):
		return "conflict"
	case errors.Is(r.Err, ErrState):
		return "state"
	case errors.Is(r.Err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
