package ledger

import (
	"encoding/json"
	"strings"
	"time"
)

// Entry is one link of a scope's hash chain. Payload holds the exact
// canonical bytes that were hashed; verification recomputes digests from it.
type Entry struct {
	ID           string          `json:"id"`
	Scope        string          `json:"scope"`
	Sequence     int             `json:"sequence"`
	Action       string          `json:"action"`
	ActorID      string          `json:"actorId"`
	Payload      json.RawMessage `json:"payload"`
	EntryHash    string          `json:"entryHash"`
	PreviousHash string          `json:"previousHash"`
	Algorithm    string          `json:"algorithm"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type VerifyResult struct {
	Scope         string `json:"scope"`
	Valid         bool   `json:"valid"`
	Entries       int    `json:"entries"`
	BreakPosition *int   `json:"breakPosition,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type ScopeInfo struct {
	Scope       string    `json:"scope"`
	Entries     int       `json:"entries"`
	LastEntryAt time.Time `json:"lastEntryAt"`
}

// ScopePrefix returns the part of a scope key before the first colon, used
// as a low-cardinality metrics label.
func ScopePrefix(scope string) string {
	if i := strings.IndexByte(scope, ':'); i > 0 {
		return scope[:i]
	}
	return scope
}
