package rights

import (
	"context"
	"strings"
	"time"
)

// Complete closes a request whose work is finished. Every item must have
// reached a final state, approved items must have been applied or executed,
// and every required recipient must have been notified. Completing an
// already-completed request is a no-op, not an error.
func (s *Service) Complete(ctx context.Context, kind Kind, requestID, actorID string) (*Request, ItemSummary, error) {
	request, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, ItemSummary{}, err
	}

	items, err := s.store.ItemsByRequest(ctx, requestID)
	if err != nil {
		return nil, ItemSummary{}, err
	}
	summary := SummarizeItems(items)

	if request.Status.Terminal() {
		if request.Status == StatusCompleted {
			return request, summary, nil
		}
		return nil, ItemSummary{}, ErrRequestClosed
	}

	recipients, err := s.store.RecipientsByRequest(ctx, requestID)
	if err != nil {
		return nil, ItemSummary{}, err
	}
	if err := CanComplete(items, recipients); err != nil {
		return nil, ItemSummary{}, err
	}

	now := time.Now().UTC()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, ItemSummary{}, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.CompleteRequestTx(ctx, tx, requestID, actorID, now)
	if err != nil {
		return nil, ItemSummary{}, err
	}
	if !ok {
		// Lost the race. Whoever won decided the terminal status; agree
		// with a completion, refuse to resurrect anything else.
		current, err := s.store.GetRequest(ctx, kind, requestID)
		if err != nil {
			return nil, ItemSummary{}, err
		}
		if current.Status == StatusCompleted {
			return current, summary, nil
		}
		return nil, ItemSummary{}, ErrRequestClosed
	}

	payload := map[string]any{
		"requestId":    request.ID,
		"sequenceCode": request.SequenceCode,
		"completedAt":  now.Format(time.RFC3339),
		"items": map[string]any{
			"applied":  summary.Applied,
			"executed": summary.Executed,
			"rejected": summary.Rejected,
			"lifted":   summary.Lifted,
		},
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), "request_completed", actorID, payload); err != nil {
		return nil, ItemSummary{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, ItemSummary{}, err
	}
	s.metrics.IncRequestClosed(string(kind), string(StatusCompleted))

	completed, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, ItemSummary{}, err
	}
	return completed, summary, nil
}

// Reject refuses the request with a documented reason.
func (s *Service) Reject(ctx context.Context, kind Kind, requestID, reason, actorID string) (*Request, error) {
	return s.close(ctx, kind, requestID, StatusRejected, "request_rejected", reason, actorID)
}

// Override closes the request without honoring it, citing a prevailing
// legal obligation. Distinct from Reject so reports can separate "refused"
// from "could not lawfully comply".
func (s *Service) Override(ctx context.Context, kind Kind, requestID, reason, actorID string) (*Request, error) {
	return s.close(ctx, kind, requestID, StatusOverridden, "request_overridden", reason, actorID)
}

func (s *Service) close(ctx context.Context, kind Kind, requestID string, target RequestStatus, action, reason, actorID string) (*Request, error) {
	request, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}

	// The absolute-right rule outranks every other check, including the
	// reason requirement: there is no reason good enough.
	if IsAbsolute(kind, request.Grounds) {
		return nil, ErrAbsoluteRight
	}
	if len(strings.TrimSpace(reason)) < MinCloseReasonLength {
		return nil, ErrCloseReasonTooShort
	}
	if request.Status.Terminal() {
		if request.Status == target {
			return request, nil
		}
		return nil, ErrRequestClosed
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.CloseRequestTx(ctx, tx, requestID, target, actorID, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetRequest(ctx, kind, requestID)
		if err != nil {
			return nil, err
		}
		if current.Status == target {
			return current, nil
		}
		return nil, ErrRequestClosed
	}

	payload := map[string]any{
		"requestId": request.ID,
		"reason":    reason,
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), action, actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.metrics.IncRequestClosed(string(kind), string(target))

	return s.store.GetRequest(ctx, kind, requestID)
}

// ExtendDueDate grants the single statutory extension. The new deadline is
// counted from the original due date, not from when the extension happens.
func (s *Service) ExtendDueDate(ctx context.Context, kind Kind, requestID string, days int, reason, actorID string) (*Request, error) {
	request, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, ErrRequestClosed
	}
	if request.Extended {
		return nil, ErrAlreadyExtended
	}
	if err := ValidateExtension(days, reason); err != nil {
		return nil, err
	}

	newDue := request.DueAt.AddDate(0, 0, days)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.ExtendRequestTx(ctx, tx, requestID, newDue, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetRequest(ctx, kind, requestID)
		if err != nil {
			return nil, err
		}
		if current.Status.Terminal() {
			return nil, ErrRequestClosed
		}
		return nil, ErrAlreadyExtended
	}

	payload := map[string]any{
		"requestId": request.ID,
		"days":      days,
		"newDueAt":  newDue.Format(time.RFC3339),
		"reason":    reason,
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), "due_date_extended", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.GetRequest(ctx, kind, requestID)
}
