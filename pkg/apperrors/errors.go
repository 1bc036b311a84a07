package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrRecordNotFound         = errors.New("employee record not found")
	ErrValidation             = errors.New("validation error")
	ErrOperationInProgress    = errors.New("bulk operation already in progress")
	ErrSetupStepOrder         = errors.New("setup step out of order")
	ErrCredentialsKeyMismatch = errors.New("connection credentials were encrypted with a different key")
)
