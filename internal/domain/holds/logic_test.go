package holds

import (
	"strings"
	"testing"
)

func TestMatchesListedSubject(t *testing.T) {
	hold := LegalHold{SubjectIDs: []string{"s1", "s2"}, Categories: []string{"HEALTH"}}

	if !Matches(hold, "s1", "") {
		t.Fatal("listed subject must match regardless of category")
	}
	if !Matches(hold, "s9", "HEALTH") {
		t.Fatal("listed category must match regardless of subject")
	}
	if Matches(hold, "s9", "FINANCIAL") {
		t.Fatal("neither dimension listed, must not match")
	}
}

func TestMatchesOpenDimensionDoesNotTripAlone(t *testing.T) {
	// All subjects, but only the HEALTH category: FINANCIAL data of any
	// subject stays unaffected.
	hold := LegalHold{SubjectIDs: nil, Categories: []string{"HEALTH"}}

	if Matches(hold, "s1", "FINANCIAL") {
		t.Fatal("open subject dimension must not freeze other categories")
	}
	if !Matches(hold, "s1", "HEALTH") {
		t.Fatal("held category must match")
	}
	if Matches(hold, "s1", "") {
		t.Fatal("subject-only check must not match a category-scoped hold")
	}
}

func TestMatchesFullFreeze(t *testing.T) {
	hold := LegalHold{SubjectIDs: nil, Categories: nil}

	if !Matches(hold, "anyone", "ANYTHING") {
		t.Fatal("hold open on both dimensions freezes everything")
	}
	if !Matches(hold, "", "") {
		t.Fatal("full freeze matches even an empty check")
	}
}

func TestMatchingHoldsFilters(t *testing.T) {
	active := []LegalHold{
		{ID: "h1", SubjectIDs: []string{"s1"}, Categories: []string{"HEALTH"}},
		{ID: "h2", SubjectIDs: []string{"s2"}, Categories: []string{"FINANCIAL"}},
		{ID: "h3"},
	}

	matched := MatchingHolds(active, "s1", "")
	if len(matched) != 2 {
		t.Fatalf("expected h1 and h3, got %d holds", len(matched))
	}
	if matched[0].ID != "h1" || matched[1].ID != "h3" {
		t.Fatalf("unexpected match set: %s, %s", matched[0].ID, matched[1].ID)
	}
}

func TestValidateCreateReason(t *testing.T) {
	input := CreateHoldInput{
		HoldType:      HoldLitigation,
		SubjectIDs:    []string{"s1"},
		AllCategories: true,
		Reason:        "too short",
	}
	if err := ValidateCreate(input); err != ErrReasonTooShort {
		t.Fatalf("expected ErrReasonTooShort, got %v", err)
	}

	input.Reason = strings.Repeat("x", MinReasonLength)
	if err := ValidateCreate(input); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestValidateCreateScope(t *testing.T) {
	base := CreateHoldInput{
		HoldType: HoldAudit,
		Reason:   "regulator requested preservation of records",
	}

	missing := base
	missing.AllCategories = true
	if err := ValidateCreate(missing); err != ErrScopeMissing {
		t.Fatalf("expected ErrScopeMissing for absent subjects, got %v", err)
	}

	conflicted := base
	conflicted.AllSubjects = true
	conflicted.SubjectIDs = []string{"s1"}
	conflicted.AllCategories = true
	if err := ValidateCreate(conflicted); err != ErrScopeConflict {
		t.Fatalf("expected ErrScopeConflict, got %v", err)
	}

	badType := base
	badType.HoldType = HoldType("SHRUG")
	badType.AllSubjects = true
	badType.AllCategories = true
	if err := ValidateCreate(badType); err != ErrInvalidHoldType {
		t.Fatalf("expected ErrInvalidHoldType, got %v", err)
	}
}

func TestValidateRelease(t *testing.T) {
	if err := ValidateRelease("ok"); err != ErrReasonTooShort {
		t.Fatalf("expected ErrReasonTooShort, got %v", err)
	}
	if err := ValidateRelease("litigation settled, preservation no longer required"); err != nil {
		t.Fatalf("expected valid release reason, got %v", err)
	}
}
