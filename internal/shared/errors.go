package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed or missing input, detected before storage is touched.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnbalancedEntry indicates debits and credits of a journal entry differ.
	ErrUnbalancedEntry = errors.New("journal entry debits must equal credits")
	// ErrEmptyEntry indicates a journal entry without lines.
	ErrEmptyEntry = errors.New("journal entry requires at least one line")
	// ErrOverpayment indicates a payment would push paid above the invoice total.
	ErrOverpayment = errors.New("payment amount exceeds invoice total")
	// ErrUnknownReference indicates a foreign key target is absent.
	ErrUnknownReference = errors.New("referenced entity does not exist")
	// ErrConstraintViolation indicates a uniqueness or integrity constraint failed.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrAlreadyApproved indicates a journal entry was approved before.
	ErrAlreadyApproved = errors.New("journal entry already approved")
	// ErrInvalidStatus indicates the action is not allowed in the current state.
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrDuplicateRequest indicates an idempotency key was already processed.
	ErrDuplicateRequest = errors.New("request already processed")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConstraintError carries the name of the violated database constraint.
type ConstraintError struct {
	Constraint string
	Detail     string
	base       error
}

func (e *ConstraintError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %s", e.base, e.Constraint, e.Detail)
	}
	return fmt.Sprintf("%s (%s)", e.base, e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.base }

// NewConstraintError wraps base (ErrConstraintViolation or ErrUnknownReference) with constraint context.
func NewConstraintError(base error, constraint, detail string) error {
	if base == nil {
		base = ErrConstraintViolation
	}
	return &ConstraintError{Constraint: constraint, Detail: detail, base: base}
}

// Validationf formats a validation failure.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
