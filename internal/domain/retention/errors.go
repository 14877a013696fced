package retention

import "errors"

var (
	ErrPolicyNotFound  = errors.New("retention policy not found")
	ErrPolicyExists    = errors.New("a policy for this category already exists")
	ErrRecordNotFound  = errors.New("retention record not found")
	ErrDuplicateRecord = errors.New("record is already registered for retention")

	ErrCategoryRequired = errors.New("category is required")
	ErrRecordRequired   = errors.New("record table and key are required")
	ErrInvalidAction    = errors.New("unknown expiry action")
	ErrInvalidDays      = errors.New("days must be positive")
	ErrReasonRequired   = errors.New("a reason is required")

	ErrRecordTerminal = errors.New("record has already been deleted or anonymized")
	ErrRecordHeld     = errors.New("record is blocked by an active legal hold")
	ErrAlreadyHeld    = errors.New("record hold flag is already set")
	ErrNotHeld        = errors.New("record hold flag is not set")

	ErrHolderRequired     = errors.New("lock holder is required")
	ErrLockHeld           = errors.New("record lock is held by another holder")
	ErrLockNotFound       = errors.New("record lock not found")
	ErrLockHolderMismatch = errors.New("record lock belongs to a different holder")
)
