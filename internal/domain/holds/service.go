package holds

import (
	"context"

	"github.com/jackc/pgx/v5"

	"cdms/internal/domain/ledger"
)

// Ledger is the slice of the hash-chain service the hold registry appends
// through. Placing and releasing a hold are chained events themselves.
type Ledger interface {
	AppendTx(ctx context.Context, tx pgx.Tx, scope, action, actorID string, payload map[string]any) (ledger.Entry, error)
	ContinueTx(ctx context.Context, tx pgx.Tx, scope, action, actorID string, payload map[string]any) (ledger.Entry, error)
}

type Service struct {
	store  *Store
	ledger Ledger
}

func NewService(store *Store, chain Ledger) *Service {
	return &Service{store: store, ledger: chain}
}

func scopeKey(holdID string) string {
	return "hold:" + holdID
}

func (s *Service) Create(ctx context.Context, input CreateHoldInput, createdBy string) (*LegalHold, error) {
	if err := ValidateCreate(input); err != nil {
		return nil, err
	}

	hold := &LegalHold{
		HoldType:   input.HoldType,
		Reason:     input.Reason,
		LegalBasis: input.LegalBasis,
		Active:     true,
		CreatedBy:  createdBy,
	}
	if !input.AllSubjects {
		hold.SubjectIDs = input.SubjectIDs
	}
	if !input.AllCategories {
		hold.Categories = input.Categories
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.InsertHoldTx(ctx, tx, hold); err != nil {
		return nil, err
	}

	if _, err := s.ledger.AppendTx(ctx, tx, scopeKey(hold.ID), "hold_placed", createdBy, map[string]any{
		"holdType":   string(hold.HoldType),
		"subjects":   dimensionPayload(hold.SubjectIDs),
		"categories": dimensionPayload(hold.Categories),
		"reason":     hold.Reason,
		"legalBasis": hold.LegalBasis,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return hold, nil
}

// Release deactivates a hold. The row is kept for the record; nothing is
// ever deleted from the registry.
func (s *Service) Release(ctx context.Context, holdID, releasedBy, reason string) (*LegalHold, error) {
	if err := ValidateRelease(reason); err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	hold, err := s.store.GetHoldTx(ctx, tx, holdID)
	if err != nil {
		return nil, err
	}
	if !hold.Active {
		return nil, ErrHoldAlreadyReleased
	}

	released, err := s.store.ReleaseHoldTx(ctx, tx, holdID, releasedBy, reason)
	if err != nil {
		return nil, err
	}
	if !released {
		return nil, ErrHoldAlreadyReleased
	}

	if _, err := s.ledger.ContinueTx(ctx, tx, scopeKey(holdID), "hold_released", releasedBy, map[string]any{
		"reason": reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.GetHold(ctx, holdID)
}

// Check answers whether any active hold covers the subject and category.
// The registry only answers; callers own the decision to block a transition.
func (s *Service) Check(ctx context.Context, subjectID, category string) (CheckResult, error) {
	active, err := s.store.ActiveHolds(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	matched := MatchingHolds(active, subjectID, category)
	return CheckResult{IsHeld: len(matched) > 0, MatchingHolds: matched}, nil
}

func (s *Service) Get(ctx context.Context, holdID string) (*LegalHold, error) {
	return s.store.GetHold(ctx, holdID)
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]LegalHold, int, error) {
	return s.store.ListHolds(ctx, activeOnly, limit, offset)
}

func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	return s.store.Statistics(ctx)
}

func dimensionPayload(values []string) any {
	if len(values) == 0 {
		return "ALL"
	}
	return values
}
