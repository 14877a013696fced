package rights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cdms/internal/domain/holds"
)

// AddItem attaches a data record to an open request. Records covered by an
// active legal hold are accepted but parked on_hold until the hold clears.
func (s *Service) AddItem(ctx context.Context, kind Kind, requestID string, input AddItemInput, actorID string) (*Item, error) {
	request, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, ErrRequestClosed
	}
	if err := ValidateItem(kind, input); err != nil {
		return nil, err
	}

	check, err := s.holds.Check(ctx, request.SubjectID, input.Category)
	if err != nil {
		return nil, err
	}

	item := &Item{
		RequestID:     requestID,
		RecordTable:   input.RecordTable,
		RecordKey:     input.RecordKey,
		Category:      input.Category,
		Description:   input.Description,
		Status:        ItemPending,
		OldValue:      input.OldValue,
		NewValue:      input.NewValue,
		ErasureMethod: input.ErasureMethod,
	}
	if check.IsHeld {
		item.Status = ItemOnHold
		item.HoldReason = blockingHold(check)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.InsertItemTx(ctx, tx, item); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"itemId":      item.ID,
		"recordTable": item.RecordTable,
		"recordKey":   item.RecordKey,
		"status":      string(item.Status),
	}
	if item.Category != "" {
		payload["category"] = item.Category
	}
	if item.HoldReason != "" {
		payload["holdReason"] = item.HoldReason
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), "item_added", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return item, nil
}

// ReviewItem approves or rejects a pending item. An on_hold item can be
// reviewed too, but only after the hold that parked it has been released;
// the registry is consulted live rather than trusting the stored status.
func (s *Service) ReviewItem(ctx context.Context, kind Kind, requestID, itemID, decision, reason, actorID string) (*Item, error) {
	request, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, ErrRequestClosed
	}

	item, err := s.store.GetItem(ctx, requestID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != ItemPending && item.Status != ItemOnHold {
		return nil, ErrItemAlreadyReviewed
	}

	var target ItemStatus
	switch decision {
	case "approved":
		target = ItemApproved
	case "rejected":
		if len(strings.TrimSpace(reason)) < MinReviewReasonLength {
			return nil, ErrReviewReasonTooShort
		}
		target = ItemRejected
	default:
		return nil, ErrInvalidDecision
	}

	if item.Status == ItemOnHold {
		check, err := s.holds.Check(ctx, request.SubjectID, item.Category)
		if err != nil {
			return nil, err
		}
		if check.IsHeld {
			return nil, ErrItemOnHold
		}
	}

	now := time.Now().UTC()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.ReviewItemTx(ctx, tx, itemID, target, actorID, reason, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrItemAlreadyReviewed
	}

	payload := map[string]any{
		"itemId":   item.ID,
		"decision": decision,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), "item_reviewed", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.GetItem(ctx, requestID, itemID)
}

// ApplyItem finalizes an approved item on a rectification, restriction or
// objection request. Erasure items go through ExecuteItem instead.
func (s *Service) ApplyItem(ctx context.Context, kind Kind, requestID, itemID, actorID string) (*Item, error) {
	if kind == KindErasure {
		return nil, ErrWrongKindVerb
	}
	return s.finalizeItem(ctx, kind, requestID, itemID, actorID, "item_applied", ItemApplied)
}

// ExecuteItem carries out an approved erasure item with the method chosen
// when the item was added.
func (s *Service) ExecuteItem(ctx context.Context, kind Kind, requestID, itemID, actorID string) (*Item, error) {
	if kind != KindErasure {
		return nil, ErrWrongKindVerb
	}
	return s.finalizeItem(ctx, kind, requestID, itemID, actorID, "item_executed", ItemExecuted)
}

func (s *Service) finalizeItem(ctx context.Context, kind Kind, requestID, itemID, actorID, action string, target ItemStatus) (*Item, error) {
	request, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, ErrRequestClosed
	}

	item, err := s.store.GetItem(ctx, requestID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != ItemApproved {
		return nil, ErrItemNotApproved
	}

	// A hold placed after approval must still stop the destructive step.
	check, err := s.holds.Check(ctx, request.SubjectID, item.Category)
	if err != nil {
		return nil, err
	}
	if check.IsHeld {
		return nil, ErrItemOnHold
	}

	now := time.Now().UTC()
	var changeSummary string
	if kind == KindRectification {
		changeSummary = ChangeSummary(item.OldValue, item.NewValue)
	}

	stamp := map[string]any{
		"itemId":      item.ID,
		"recordTable": item.RecordTable,
		"recordKey":   item.RecordKey,
		"action":      action,
		"actorId":     actorID,
		"at":          now.Format(time.RFC3339Nano),
	}
	if kind == KindErasure {
		stamp["method"] = string(item.ErasureMethod)
	}
	if changeSummary != "" {
		stamp["changeSummary"] = changeSummary
	}
	verificationHash, err := s.hasher.Digest(stamp)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.ApplyItemTx(ctx, tx, itemID, target, actorID, changeSummary, verificationHash, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrItemNotApproved
	}

	payload := map[string]any{
		"itemId":           item.ID,
		"verificationHash": verificationHash,
	}
	if kind == KindErasure {
		payload["method"] = string(item.ErasureMethod)
	}
	if changeSummary != "" {
		payload["changeSummary"] = changeSummary
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), action, actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.GetItem(ctx, requestID, itemID)
}

// LiftRestriction resumes processing of a restricted record. It is the one
// item transition permitted after the request has completed, because grounds
// like ACCURACY_CONTESTED resolve on their own schedule.
func (s *Service) LiftRestriction(ctx context.Context, kind Kind, requestID, itemID, reason, actorID string) (*Item, error) {
	if kind != KindRestriction {
		return nil, ErrNotRestriction
	}
	if len(strings.TrimSpace(reason)) < MinReviewReasonLength {
		return nil, ErrReviewReasonTooShort
	}

	request, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	item, err := s.store.GetItem(ctx, requestID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != ItemApplied {
		return nil, ErrItemNotApplied
	}

	check, err := s.holds.Check(ctx, request.SubjectID, item.Category)
	if err != nil {
		return nil, err
	}
	if check.IsHeld {
		return nil, ErrItemOnHold
	}

	now := time.Now().UTC()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.LiftItemTx(ctx, tx, itemID, actorID, reason, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrItemNotApplied
	}

	payload := map[string]any{
		"itemId": item.ID,
		"reason": reason,
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), "restriction_lifted", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.GetItem(ctx, requestID, itemID)
}

// blockingHold names the hold that parked an item so reviewers can find it.
func blockingHold(check holds.CheckResult) string {
	if len(check.MatchingHolds) == 0 {
		return ""
	}
	hold := check.MatchingHolds[0]
	return fmt.Sprintf("%s hold %s", hold.HoldType, hold.ID)
}
