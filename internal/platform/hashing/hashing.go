package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Genesis is the previous-hash value anchoring the first entry of a chain.
const Genesis = "GENESIS"

const AlgorithmSHA256V1 = "sha256-v1"

type Provider struct {
	algorithm string
}

func New(algorithm string) (*Provider, error) {
	if algorithm == "" {
		algorithm = AlgorithmSHA256V1
	}
	if algorithm != AlgorithmSHA256V1 {
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
	return &Provider{algorithm: algorithm}, nil
}

func (p *Provider) Algorithm() string {
	return p.algorithm
}

// Canonical serializes payload deterministically: JSON with all object keys
// sorted at every depth and no HTML escaping. The exact bytes returned here
// are what gets hashed and stored, so the same payload always canonicalizes
// to the same bytes.
func (p *Provider) Canonical(payload map[string]any) ([]byte, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// EntryHash computes the chained digest: H(canonical || previousHash).
func (p *Provider) EntryHash(canonical []byte, previousHash string) string {
	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte(previousHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes an unchained digest of a payload, used for verification
// stamps on applied changes.
func (p *Provider) Digest(payload map[string]any) (string, error) {
	canonical, err := p.Canonical(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
