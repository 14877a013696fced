package retention

import (
	"strings"
	"time"
)

// ComputeExpiry is the only place an expiry date is derived from a policy.
func ComputeExpiry(createdDate time.Time, retentionDays int) time.Time {
	return createdDate.AddDate(0, 0, retentionDays)
}

// StatusForExpiry picks active or expired from the expiry alone. Used when
// a hold release or an extension has to restore a record's natural state.
func StatusForExpiry(expiry, asOf time.Time) RecordStatus {
	if expiry.After(asOf) {
		return StatusActive
	}
	return StatusExpired
}

func ValidatePolicy(input CreatePolicyInput) error {
	if strings.TrimSpace(input.Category) == "" {
		return ErrCategoryRequired
	}
	if input.RetentionDays < 1 {
		return ErrInvalidDays
	}
	if !input.ActionOnExpiry.Valid() {
		return ErrInvalidAction
	}
	return nil
}

func ValidateRegister(input RegisterInput) error {
	if strings.TrimSpace(input.RecordTable) == "" || strings.TrimSpace(input.RecordKey) == "" {
		return ErrRecordRequired
	}
	if input.PolicyID == "" && strings.TrimSpace(input.Category) == "" {
		return ErrCategoryRequired
	}
	return nil
}

// LockKey builds the advisory-lock identity for a record coordinate.
func LockKey(recordTable, recordKey string) string {
	return recordTable + "/" + recordKey
}
