package hashing

import (
	"strings"
	"testing"
)

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := New("md5"); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	}
	p, err := New("")
	if err != nil {
		t.Fatalf("default algorithm: %v", err)
	}
	if p.Algorithm() != AlgorithmSHA256V1 {
		t.Fatalf("expected default %s, got %s", AlgorithmSHA256V1, p.Algorithm())
	}
}

func TestCanonicalIsDeterministic(t *testing.T) {
	p, _ := New(AlgorithmSHA256V1)
	a, err := p.Canonical(map[string]any{
		"zeta":  1,
		"alpha": map[string]any{"y": "2", "x": "1"},
	})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	b, err := p.Canonical(map[string]any{
		"alpha": map[string]any{"x": "1", "y": "2"},
		"zeta":  1,
	})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("canonical bytes differ: %s vs %s", a, b)
	}
	want := `{"alpha":{"x":"1","y":"2"},"zeta":1}`
	if string(a) != want {
		t.Fatalf("expected %s, got %s", want, a)
	}
}

func TestCanonicalDoesNotEscapeHTML(t *testing.T) {
	p, _ := New(AlgorithmSHA256V1)
	got, err := p.Canonical(map[string]any{"detail": "a<b&c>d"})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if !strings.Contains(string(got), "a<b&c>d") {
		t.Fatalf("html characters were escaped: %s", got)
	}
}

func TestEntryHashChaining(t *testing.T) {
	p, _ := New(AlgorithmSHA256V1)
	canonical, _ := p.Canonical(map[string]any{"action": "created"})

	first := p.EntryHash(canonical, Genesis)
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if strings.ToLower(first) != first {
		t.Fatalf("expected lowercase hex, got %s", first)
	}
	if again := p.EntryHash(canonical, Genesis); again != first {
		t.Fatalf("hash not stable: %s vs %s", first, again)
	}
	second := p.EntryHash(canonical, first)
	if second == first {
		t.Fatalf("different previous hash must change the digest")
	}

	other, _ := p.Canonical(map[string]any{"action": "changed"})
	if p.EntryHash(other, Genesis) == first {
		t.Fatalf("different payload must change the digest")
	}
}

func TestDigest(t *testing.T) {
	p, _ := New(AlgorithmSHA256V1)
	sum, err := p.Digest(map[string]any{"record": "subjects/42"})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if len(sum) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(sum))
	}
}
