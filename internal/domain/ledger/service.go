package ledger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"cdms/internal/platform/hashing"
	"cdms/internal/platform/metrics"
)

type Service struct {
	store   *Store
	hasher  *hashing.Provider
	metrics *metrics.Metrics
}

func NewService(store *Store, hasher *hashing.Provider, m *metrics.Metrics) *Service {
	return &Service{store: store, hasher: hasher, metrics: m}
}

// AppendTx adds an entry to a scope's chain inside the caller's transaction,
// starting the chain when the scope is empty. Domain mutations and their
// chain entries commit or roll back together.
func (s *Service) AppendTx(ctx context.Context, tx pgx.Tx, scope, action, actorID string, payload map[string]any) (Entry, error) {
	return s.append(ctx, tx, scope, action, actorID, payload, false)
}

// ContinueTx is AppendTx for scopes that must already have a chain. An empty
// scope here means the predecessor entries are gone, which is an integrity
// violation, never a reason to start over.
func (s *Service) ContinueTx(ctx context.Context, tx pgx.Tx, scope, action, actorID string, payload map[string]any) (Entry, error) {
	return s.append(ctx, tx, scope, action, actorID, payload, true)
}

func (s *Service) append(ctx context.Context, tx pgx.Tx, scope, action, actorID string, payload map[string]any, mustContinue bool) (Entry, error) {
	if strings.TrimSpace(scope) == "" {
		return Entry{}, ErrScopeRequired
	}
	if strings.TrimSpace(action) == "" {
		return Entry{}, ErrActionRequired
	}

	if err := s.store.LockScopeTx(ctx, tx, scope); err != nil {
		return Entry{}, err
	}

	last, count, err := s.store.LastEntryTx(ctx, tx, scope)
	if err != nil {
		return Entry{}, err
	}

	previous := hashing.Genesis
	sequence := 0
	switch {
	case count == 0 && mustContinue:
		return Entry{}, s.integrityFailure(scope, 0, "chain has no entries but a predecessor is required")
	case count > 0 && last == nil:
		return Entry{}, s.integrityFailure(scope, count-1, "latest entry could not be read back")
	case last != nil:
		if last.Sequence != count-1 {
			return Entry{}, s.integrityFailure(scope, last.Sequence, "entry count does not match the latest sequence number")
		}
		if last.Algorithm != s.hasher.Algorithm() {
			return Entry{}, ErrAlgorithmMismatch
		}
		previous = last.EntryHash
		sequence = last.Sequence + 1
	}

	canonical, err := s.hasher.Canonical(payload)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Scope:        scope,
		Sequence:     sequence,
		Action:       action,
		ActorID:      actorID,
		Payload:      canonical,
		EntryHash:    s.hasher.EntryHash(canonical, previous),
		PreviousHash: previous,
		Algorithm:    s.hasher.Algorithm(),
	}
	if err := s.store.InsertEntryTx(ctx, tx, &entry); err != nil {
		return Entry{}, err
	}

	s.metrics.IncLedgerAppend(ScopePrefix(scope))
	return entry, nil
}

// Verify replays a scope's chain. A break is reported in the result rather
// than returned as an error so callers can render position and reason; it is
// still logged and counted as an integrity failure.
func (s *Service) Verify(ctx context.Context, scope string) (VerifyResult, error) {
	if strings.TrimSpace(scope) == "" {
		return VerifyResult{}, ErrScopeRequired
	}

	entries, err := s.store.EntriesAsc(ctx, scope)
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyEntries(s.hasher, scope, entries)
	if !result.Valid {
		position := 0
		if result.BreakPosition != nil {
			position = *result.BreakPosition
		}
		slog.Error("hash chain verification failed",
			"scope", scope,
			"position", position,
			"reason", result.Reason,
		)
		s.metrics.IncIntegrityFailure(ScopePrefix(scope))
	}
	return result, nil
}

func (s *Service) History(ctx context.Context, scope string, limit, offset int) ([]Entry, int, error) {
	if strings.TrimSpace(scope) == "" {
		return nil, 0, ErrScopeRequired
	}
	return s.store.History(ctx, scope, limit, offset)
}

func (s *Service) Scopes(ctx context.Context, prefix string, limit int) ([]ScopeInfo, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	return s.store.Scopes(ctx, prefix, limit)
}

func (s *Service) integrityFailure(scope string, position int, reason string) error {
	slog.Error("hash chain integrity failure",
		"scope", scope,
		"position", position,
		"reason", reason,
	)
	s.metrics.IncIntegrityFailure(ScopePrefix(scope))
	return &IntegrityError{Scope: scope, Position: position, Reason: reason}
}
