package service

import (
	"errors"
	"fmt"

	"github.com/pqrs_dashboard/backend/internal/models"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrConflict             = errors.New("conflict")

	ErrInvalidStatus      = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrNoOp               = fmt.Errorf("%w: status is already set to this value", ErrValidation)
	ErrDepartmentMismatch = fmt.Errorf("%w: employee does not belong to the request department", ErrValidation)
)

// NotificationError reports a delivery failure after the request was
// committed. PQR holds the persisted record.
type NotificationError struct {
	PQR models.PQRS
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("pqr %s created but notification failed: %v", e.PQR.ConsecutiveCode, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
