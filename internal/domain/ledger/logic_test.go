package ledger

import (
	"fmt"
	"testing"

	"cdms/internal/platform/hashing"
)

func buildChain(t *testing.T, provider *hashing.Provider, scope string, length int) []Entry {
	t.Helper()
	entries := make([]Entry, 0, length)
	previous := hashing.Genesis
	for i := 0; i < length; i++ {
		payload, err := provider.Canonical(map[string]any{"step": fmt.Sprintf("s%d", i)})
		if err != nil {
			t.Fatalf("canonical: %v", err)
		}
		entry := Entry{
			Scope:        scope,
			Sequence:     i,
			Action:       "step",
			ActorID:      "tester",
			Payload:      payload,
			EntryHash:    provider.EntryHash(payload, previous),
			PreviousHash: previous,
			Algorithm:    provider.Algorithm(),
		}
		entries = append(entries, entry)
		previous = entry.EntryHash
	}
	return entries
}

func TestVerifyEmptyScope(t *testing.T) {
	provider, _ := hashing.New("")
	result := VerifyEntries(provider, "request:none", nil)
	if !result.Valid || result.Entries != 0 || result.BreakPosition != nil {
		t.Fatalf("empty scope should verify clean, got %+v", result)
	}
}

func TestVerifyValidChain(t *testing.T) {
	provider, _ := hashing.New("")
	entries := buildChain(t, provider, "request:abc", 6)
	result := VerifyEntries(provider, "request:abc", entries)
	if !result.Valid {
		t.Fatalf("expected valid chain, got break at %v: %s", result.BreakPosition, result.Reason)
	}
	if entries[0].PreviousHash != hashing.Genesis {
		t.Fatalf("first entry must anchor to %s", hashing.Genesis)
	}
}

func TestVerifyReportsTamperedPayload(t *testing.T) {
	provider, _ := hashing.New("")
	entries := buildChain(t, provider, "request:abc", 5)
	entries[2].Payload = []byte(`{"step":"forged"}`)

	result := VerifyEntries(provider, "request:abc", entries)
	if result.Valid {
		t.Fatal("expected verification failure")
	}
	if result.BreakPosition == nil || *result.BreakPosition != 2 {
		t.Fatalf("expected break at position 2, got %v", result.BreakPosition)
	}
}

func TestVerifyReportsRecomputedTampering(t *testing.T) {
	// An attacker who rewrites a payload and recomputes that entry's own
	// hash still breaks the chain at the next link.
	provider, _ := hashing.New("")
	entries := buildChain(t, provider, "request:abc", 5)
	forged, _ := provider.Canonical(map[string]any{"step": "forged"})
	entries[1].Payload = forged
	entries[1].EntryHash = provider.EntryHash(forged, entries[1].PreviousHash)

	result := VerifyEntries(provider, "request:abc", entries)
	if result.Valid {
		t.Fatal("expected verification failure")
	}
	if result.BreakPosition == nil || *result.BreakPosition != 2 {
		t.Fatalf("expected break at position 2, got %v", result.BreakPosition)
	}
}

func TestVerifyReportsSequenceGap(t *testing.T) {
	provider, _ := hashing.New("")
	entries := buildChain(t, provider, "retention:subjects/7", 4)
	withGap := append([]Entry{entries[0]}, entries[2], entries[3])

	result := VerifyEntries(provider, "retention:subjects/7", withGap)
	if result.Valid {
		t.Fatal("expected verification failure")
	}
	if result.BreakPosition == nil || *result.BreakPosition != 1 {
		t.Fatalf("expected break at position 1, got %v", result.BreakPosition)
	}
}

func TestVerifyReportsFirstBreakOnly(t *testing.T) {
	provider, _ := hashing.New("")
	entries := buildChain(t, provider, "hold:h1", 6)
	entries[1].Payload = []byte(`{"a":1}`)
	entries[4].Payload = []byte(`{"b":2}`)

	result := VerifyEntries(provider, "hold:h1", entries)
	if result.BreakPosition == nil || *result.BreakPosition != 1 {
		t.Fatalf("expected first break at position 1, got %v", result.BreakPosition)
	}
}

func TestScopePrefix(t *testing.T) {
	cases := map[string]string{
		"request:abc":            "request",
		"requests:erasure":       "requests",
		"retention:subjects/42":  "retention",
		"plain":                  "plain",
		"hold:9d2c:extra":        "hold",
	}
	for scope, want := range cases {
		if got := ScopePrefix(scope); got != want {
			t.Fatalf("ScopePrefix(%q) = %q, want %q", scope, got, want)
		}
	}
}
