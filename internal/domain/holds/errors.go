package holds

import "errors"

var (
	ErrHoldNotFound        = errors.New("legal hold not found")
	ErrHoldAlreadyReleased = errors.New("legal hold is already released")
	ErrInvalidHoldType     = errors.New("unknown hold type")
	ErrReasonTooShort      = errors.New("reason must be at least 20 characters")
	ErrScopeConflict       = errors.New("provide subject ids or all subjects, not both; same for categories")
	ErrScopeMissing        = errors.New("hold must name subject ids or all subjects, and categories or all categories")
)
