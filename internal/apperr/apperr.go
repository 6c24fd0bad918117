// Package apperr holds the error kinds shared by the ledger and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound: a referenced customer, product, order or order item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState: the entity is in the wrong lifecycle state for the operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrConstraintViolation: quantities or amounts break a ledger rule.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrConflictRetryable: a generated code kept colliding after all retries.
	ErrConflictRetryable = errors.New("conflict, retry later")
	// ErrTransactionAborted: the storage transaction failed; nothing was persisted.
	ErrTransactionAborted = errors.New("transaction aborted")
	// ErrForbidden: the caller's role may not act on this entity.
	ErrForbidden = errors.New("forbidden")
)

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func ConstraintViolation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConstraintViolation, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// IsDomain reports whether err is a validation-type failure that must not be retried.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState) || errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrForbidden)
}

// HTTPStatus maps an error kind to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConstraintViolation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflictRetryable), errors.Is(err, ErrTransactionAborted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns the snake_case name of err's kind, or "" for unclassified errors.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConstraintViolation):
		return "constraint_violation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflictRetryable):
		return "conflict_retryable"
	case errors.Is(err, ErrTransactionAborted):
		return "transaction_aborted"
	default:
		return ""
	}
}
