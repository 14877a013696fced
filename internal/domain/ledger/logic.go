package ledger

import "cdms/internal/platform/hashing"

// VerifyEntries replays a scope's chain and reports the first break, if any.
// Entries must be in ascending sequence order, exactly as stored. Each entry
// is checked three ways: dense sequence numbering, linkage of its stored
// previous hash to the prior entry, and recomputation of its own digest from
// the stored payload bytes.
func VerifyEntries(provider *hashing.Provider, scope string, entries []Entry) VerifyResult {
	result := VerifyResult{Scope: scope, Valid: true, Entries: len(entries)}

	previous := hashing.Genesis
	for i, entry := range entries {
		if entry.Sequence != i {
			return broken(result, i, "sequence numbering has a gap")
		}
		if entry.PreviousHash != previous {
			return broken(result, i, "previous hash does not match the prior entry")
		}
		recomputed := provider.EntryHash([]byte(entry.Payload), entry.PreviousHash)
		if recomputed != entry.EntryHash {
			return broken(result, i, "stored hash does not match recomputed hash")
		}
		previous = entry.EntryHash
	}
	return result
}

func broken(result VerifyResult, position int, reason string) VerifyResult {
	result.Valid = false
	result.BreakPosition = &position
	result.Reason = reason
	return result
}
