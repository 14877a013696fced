package retention

import (
	"errors"
	"testing"
	"time"
)

func TestComputeExpiry(t *testing.T) {
	created := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
	if got := ComputeExpiry(created, 30); !got.Equal(want) {
		t.Fatalf("ComputeExpiry = %v, want %v", got, want)
	}
}

func TestExtensionAddsExactDays(t *testing.T) {
	expiry := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)
	extended := expiry.AddDate(0, 0, 90)
	want := time.Date(2026, time.September, 8, 12, 0, 0, 0, time.UTC)
	if !extended.Equal(want) {
		t.Fatalf("extension must add exactly the requested days, got %v want %v", extended, want)
	}
}

func TestStatusForExpiry(t *testing.T) {
	asOf := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	if got := StatusForExpiry(asOf.AddDate(0, 0, 1), asOf); got != StatusActive {
		t.Fatalf("future expiry should be active, got %s", got)
	}
	if got := StatusForExpiry(asOf, asOf); got != StatusExpired {
		t.Fatalf("expiry equal to as-of is already due, got %s", got)
	}
	if got := StatusForExpiry(asOf.AddDate(0, 0, -1), asOf); got != StatusExpired {
		t.Fatalf("past expiry should be expired, got %s", got)
	}
}

func TestValidatePolicy(t *testing.T) {
	valid := CreatePolicyInput{Category: "HEALTH", RetentionDays: 3650, ActionOnExpiry: ActionDelete}
	if err := ValidatePolicy(valid); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	cases := []struct {
		name    string
		input   CreatePolicyInput
		wantErr error
	}{
		{"missing category", CreatePolicyInput{RetentionDays: 30, ActionOnExpiry: ActionDelete}, ErrCategoryRequired},
		{"zero days", CreatePolicyInput{Category: "HEALTH", ActionOnExpiry: ActionDelete}, ErrInvalidDays},
		{"bad action", CreatePolicyInput{Category: "HEALTH", RetentionDays: 30, ActionOnExpiry: "SHRED"}, ErrInvalidAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidatePolicy(tc.input); !errors.Is(err, tc.wantErr) {
				t.Fatalf("ValidatePolicy = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateRegister(t *testing.T) {
	if err := ValidateRegister(RegisterInput{Category: "HEALTH", RecordKey: "k"}); !errors.Is(err, ErrRecordRequired) {
		t.Fatalf("missing table should fail, got %v", err)
	}
	if err := ValidateRegister(RegisterInput{RecordTable: "observations", RecordKey: "k"}); !errors.Is(err, ErrCategoryRequired) {
		t.Fatalf("neither policy id nor category should fail, got %v", err)
	}
	if err := ValidateRegister(RegisterInput{PolicyID: "p1", RecordTable: "observations", RecordKey: "k"}); err != nil {
		t.Fatalf("policy id alone should pass, got %v", err)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for status, want := range map[RecordStatus]bool{
		StatusActive:     false,
		StatusExpired:    false,
		StatusLegalHold:  false,
		StatusDeleted:    true,
		StatusAnonymized: true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestLockKey(t *testing.T) {
	if got := LockKey("observations", "obs-9"); got != "observations/obs-9" {
		t.Fatalf("LockKey = %q", got)
	}
}
