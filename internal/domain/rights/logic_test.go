package rights

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateGrounds(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		grounds string
		wantErr error
	}{
		{"erasure consent withdrawn", KindErasure, GroundConsentWithdrawn, nil},
		{"erasure unknown ground", KindErasure, "BECAUSE_I_SAID_SO", ErrInvalidGrounds},
		{"erasure restriction ground rejected", KindErasure, GroundAccuracyContested, ErrInvalidGrounds},
		{"restriction accuracy contested", KindRestriction, GroundAccuracyContested, nil},
		{"restriction empty", KindRestriction, "", ErrInvalidGrounds},
		{"objection direct marketing", KindObjection, ObjectionDirectMarketing, nil},
		{"objection erasure ground rejected", KindObjection, GroundConsentWithdrawn, ErrInvalidGrounds},
		{"rectification carries no grounds", KindRectification, "", nil},
		{"rectification with grounds rejected", KindRectification, GroundConsentWithdrawn, ErrInvalidGrounds},
		{"unknown kind", Kind("access"), "", ErrInvalidKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateGrounds(tc.kind, tc.grounds); !errors.Is(err, tc.wantErr) {
				t.Fatalf("ValidateGrounds(%s, %q) = %v, want %v", tc.kind, tc.grounds, err, tc.wantErr)
			}
		})
	}
}

func TestValidateItem(t *testing.T) {
	if err := ValidateItem(KindErasure, AddItemInput{RecordKey: "k1"}); !errors.Is(err, ErrRecordRequired) {
		t.Fatalf("missing table should fail, got %v", err)
	}
	if err := ValidateItem(KindErasure, AddItemInput{RecordTable: "employees", RecordKey: "k1"}); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("erasure without method should fail, got %v", err)
	}
	if err := ValidateItem(KindErasure, AddItemInput{RecordTable: "employees", RecordKey: "k1", ErasureMethod: MethodAnonymize}); err != nil {
		t.Fatalf("valid erasure item rejected: %v", err)
	}
	if err := ValidateItem(KindRectification, AddItemInput{RecordTable: "employees", RecordKey: "k1", OldValue: "a"}); !errors.Is(err, ErrValuesRequired) {
		t.Fatalf("rectification without new value should fail, got %v", err)
	}
	if err := ValidateItem(KindRestriction, AddItemInput{RecordTable: "employees", RecordKey: "k1"}); err != nil {
		t.Fatalf("valid restriction item rejected: %v", err)
	}
}

func TestIsAbsolute(t *testing.T) {
	if !IsAbsolute(KindObjection, ObjectionDirectMarketing) {
		t.Fatal("direct marketing objection must be absolute")
	}
	if IsAbsolute(KindObjection, ObjectionLegitimateInterests) {
		t.Fatal("legitimate interests objection is not absolute")
	}
	if IsAbsolute(KindErasure, ObjectionDirectMarketing) {
		t.Fatal("absolute right applies to objections only")
	}
}

func TestSequenceCode(t *testing.T) {
	if got := SequenceCode(KindErasure, 2026, 42); got != "ERA-2026-000042" {
		t.Fatalf("SequenceCode = %q", got)
	}
	if got := SequenceCode(KindObjection, 2027, 1234567); got != "OBJ-2027-1234567" {
		t.Fatalf("counter wider than the pad should not truncate, got %q", got)
	}
}

func TestDueDate(t *testing.T) {
	received := time.Date(2026, time.January, 15, 9, 30, 0, 0, time.UTC)
	want := time.Date(2026, time.February, 14, 9, 30, 0, 0, time.UTC)
	if got := DueDate(received); !got.Equal(want) {
		t.Fatalf("DueDate = %v, want %v", got, want)
	}
}

func TestValidateExtension(t *testing.T) {
	goodReason := "awaiting identity verification documents"
	if err := ValidateExtension(0, goodReason); !errors.Is(err, ErrInvalidExtension) {
		t.Fatalf("zero days should fail, got %v", err)
	}
	if err := ValidateExtension(61, goodReason); !errors.Is(err, ErrInvalidExtension) {
		t.Fatalf("61 days should fail, got %v", err)
	}
	if err := ValidateExtension(60, goodReason); err != nil {
		t.Fatalf("60 days is the cap and must pass, got %v", err)
	}
	if err := ValidateExtension(14, "brief"); !errors.Is(err, ErrReviewReasonTooShort) {
		t.Fatalf("short reason should fail, got %v", err)
	}
}

func TestCanComplete(t *testing.T) {
	applied := Item{Status: ItemApplied}
	executed := Item{Status: ItemExecuted}
	notified := time.Now().UTC()

	cases := []struct {
		name       string
		items      []Item
		recipients []Recipient
		wantErr    error
	}{
		{"no items no recipients", nil, nil, nil},
		{"pending item blocks", []Item{applied, {Status: ItemPending}}, nil, ErrItemsUnresolved},
		{"on hold item blocks", []Item{{Status: ItemOnHold}}, nil, ErrItemsUnresolved},
		{"approved but unapplied blocks", []Item{{Status: ItemApproved}}, nil, ErrItemsUnapplied},
		{"rejected item is final", []Item{{Status: ItemRejected}}, nil, nil},
		{"required recipient unnotified blocks", []Item{executed}, []Recipient{{Required: true}}, ErrNotificationsOutstanding},
		{"optional recipient unnotified passes", []Item{executed}, []Recipient{{Required: false}}, nil},
		{"everything resolved", []Item{applied, executed, {Status: ItemLifted}}, []Recipient{{Required: true, NotifiedAt: &notified}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := CanComplete(tc.items, tc.recipients); !errors.Is(err, tc.wantErr) {
				t.Fatalf("CanComplete = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCanCompleteReportsItemsBeforeNotifications(t *testing.T) {
	items := []Item{{Status: ItemPending}}
	recipients := []Recipient{{Required: true}}
	if err := CanComplete(items, recipients); !errors.Is(err, ErrItemsUnresolved) {
		t.Fatalf("unresolved items should be reported first, got %v", err)
	}
}

func TestSummarizeItems(t *testing.T) {
	items := []Item{
		{Status: ItemPending},
		{Status: ItemPending},
		{Status: ItemOnHold},
		{Status: ItemApproved},
		{Status: ItemRejected},
		{Status: ItemApplied},
		{Status: ItemExecuted},
		{Status: ItemLifted},
	}
	got := SummarizeItems(items)
	want := ItemSummary{Pending: 2, OnHold: 1, Approved: 1, Rejected: 1, Applied: 1, Executed: 1, Lifted: 1}
	if got != want {
		t.Fatalf("SummarizeItems = %+v, want %+v", got, want)
	}
}

func TestChangeSummary(t *testing.T) {
	if got := ChangeSummary("same", "same"); got != "no change" {
		t.Fatalf("equal values should summarize as no change, got %q", got)
	}

	got := ChangeSummary("Flat 4, 12 Elm Street", "Flat 7, 12 Elm Street")
	if !strings.HasPrefix(got, "-1 +1 chars;") {
		t.Fatalf("single character swap should count -1 +1, got %q", got)
	}
	if !strings.Contains(got, "delta ") {
		t.Fatalf("summary should carry the diff delta, got %q", got)
	}
}
