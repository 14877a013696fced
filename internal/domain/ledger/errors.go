package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrScopeRequired     = errors.New("ledger scope is required")
	ErrActionRequired    = errors.New("ledger action is required")
	ErrAlgorithmMismatch = errors.New("scope was written under a different hash algorithm")
)

// IntegrityError reports a broken hash chain. It is fatal for the scope:
// the chain must never be repaired or restarted in code, only investigated.
type IntegrityError struct {
	Scope    string
	Position int
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in scope %s at position %d: %s", e.Scope, e.Position, e.Reason)
}

// IsIntegrityError reports whether err carries an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
