package holds

import (
	"slices"
	"strings"
)

// Matches reports whether a hold covers the subject and category being
// checked. An explicitly listed dimension matches its listed values only.
// A dimension left open (nil, covering all) never trips a match by itself:
// a hold on all subjects for the HEALTH category must not freeze FINANCIAL
// data. Only a hold open on both dimensions matches every check.
func Matches(hold LegalHold, subjectID, category string) bool {
	if len(hold.SubjectIDs) == 0 && len(hold.Categories) == 0 {
		return true
	}
	if subjectID != "" && slices.Contains(hold.SubjectIDs, subjectID) {
		return true
	}
	if category != "" && slices.Contains(hold.Categories, category) {
		return true
	}
	return false
}

// MatchingHolds filters active holds down to those covering the check.
func MatchingHolds(active []LegalHold, subjectID, category string) []LegalHold {
	var matched []LegalHold
	for _, hold := range active {
		if Matches(hold, subjectID, category) {
			matched = append(matched, hold)
		}
	}
	return matched
}

func ValidateCreate(input CreateHoldInput) error {
	if !input.HoldType.Valid() {
		return ErrInvalidHoldType
	}
	if len(strings.TrimSpace(input.Reason)) < MinReasonLength {
		return ErrReasonTooShort
	}
	if input.AllSubjects && len(input.SubjectIDs) > 0 {
		return ErrScopeConflict
	}
	if input.AllCategories && len(input.Categories) > 0 {
		return ErrScopeConflict
	}
	if !input.AllSubjects && len(input.SubjectIDs) == 0 {
		return ErrScopeMissing
	}
	if !input.AllCategories && len(input.Categories) == 0 {
		return ErrScopeMissing
	}
	return nil
}

func ValidateRelease(reason string) error {
	if len(strings.TrimSpace(reason)) < MinReasonLength {
		return ErrReasonTooShort
	}
	return nil
}
