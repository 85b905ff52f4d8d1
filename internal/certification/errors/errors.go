// Package errors defines the error taxonomy shared by the certification
// store, the workflow service and the transport layer.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = fmt.Errorf("not found")
	ErrInvalidInput        = fmt.Errorf("invalid input")
	ErrForbidden           = fmt.Errorf("forbidden")
	ErrAlreadyRejected     = fmt.Errorf("certification already rejected")
	ErrAlreadyDecided      = fmt.Errorf("stage already decided")
	ErrConstraintViolation = fmt.Errorf("constraint violation")
	ErrStorage             = fmt.Errorf("storage failure")
)

// ValidationError lists the draft fields that are missing or malformed.
// It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Fields []string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing or invalid fields: %s", ErrInvalidInput, strings.Join(v.Fields, ", "))
}

func (v *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Kind returns the stable machine-readable kind for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyRejected):
		return "already_rejected"
	case errors.Is(err, ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConstraintViolation):
		return "constraint_violation"
	default:
		return "storage"
	}
}

// IsDomain reports whether err is one of the workflow's own errors, as
// opposed to an unclassified failure from a dependency.
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrInvalidInput, ErrForbidden, ErrAlreadyRejected,
		ErrAlreadyDecided, ErrConstraintViolation, ErrStorage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
