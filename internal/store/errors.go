package store

import "errors"

var (
	ErrEntityNotFound      = errors.New("entity not found")
	ErrDepartmentNotFound  = errors.New("department not found")
	ErrConfigNotFound      = errors.New("pqr config not found")
	ErrConsecutiveNotFound = errors.New("entity consecutive not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrPQRNotFound         = errors.New("pqr not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrCodeTaken           = errors.New("consecutive code prefix already in use")
	ErrConsecutiveTaken    = errors.New("consecutive code already issued for entity")
	ErrNotificationMissing = errors.New("notification not found")
)
